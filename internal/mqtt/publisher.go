package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/analysis"
	"github.com/nugget/airspace-copilot/internal/buildinfo"
	"github.com/nugget/airspace-copilot/internal/config"
)

// unknownState is the payload HA maps to an unknown sensor value.
const unknownState = "None"

// RegionLister enumerates regions that have a snapshot.
type RegionLister interface {
	Regions(ctx context.Context) ([]string, error)
}

// Analyzer produces the analysis for a region.
type Analyzer interface {
	Analyze(ctx context.Context, region string) (*analysis.Analysis, error)
}

// messagePublisher is the subset of [autopaho.ConnectionManager] the
// publisher needs.
type messagePublisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// Publisher manages the MQTT connection, publishes HA discovery config
// messages on (re-)connect, and runs a periodic loop that pushes
// per-region sensor states to the broker.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	device     DeviceInfo
	regions    RegionLister
	analyzer   Analyzer
	tokens     *DailyTokens
	logger     *slog.Logger

	mu      sync.Mutex
	watched []string // regions with published discovery configs
	cm      *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to begin the connection and publish loop. tokens may be nil.
func New(cfg config.MQTTConfig, instanceID string, regions RegionLister, analyzer Analyzer, tokens *DailyTokens, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		device:     NewDeviceInfo(instanceID, cfg.DeviceName),
		regions:    regions,
		analyzer:   analyzer,
		tokens:     tokens,
		logger:     logger,
	}
}

// Device returns the HA device block shared by all sensors.
func (p *Publisher) Device() DeviceInfo {
	return p.device
}

// Start connects to the MQTT broker and begins the periodic publish
// loop. It blocks until ctx is cancelled. On every (re-)connect it
// publishes discovery configs and a birth message.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.refreshRegions(ctx)
			p.publishDiscovery(ctx, cm)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "airspace-copilot-" + p.cfg.DeviceName,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.mu.Lock()
	p.cm = cm
	p.mu.Unlock()

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	p.runLoop(ctx, cm)
	return nil
}

// Stop publishes an "offline" availability message and disconnects.
// ctx bounds how long to wait for both.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	cm := p.cm
	p.mu.Unlock()
	if cm == nil {
		return nil
	}
	p.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}

// --- Topic helpers ---

func (p *Publisher) baseTopic() string {
	return "airspace-copilot/" + p.cfg.DeviceName
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

func (p *Publisher) stateTopic(entity string) string {
	return p.baseTopic() + "/" + entity + "/state"
}

func (p *Publisher) discoveryTopic(component, entity string) string {
	return p.cfg.DiscoveryPrefix + "/" + component + "/" + p.cfg.DeviceName + "/" + entity + "/config"
}

// regionEntity builds an entity suffix for a region sensor. Region
// names are restricted to [A-Za-z0-9_-], so only dashes need mapping.
func regionEntity(region, metric string) string {
	return strings.ReplaceAll(region, "-", "_") + "_" + metric
}

// --- Regions ---

// refreshRegions resolves the watched region list: the configured
// regions when set, otherwise every region with a snapshot. It reports
// whether the list changed.
func (p *Publisher) refreshRegions(ctx context.Context) bool {
	regions := slices.Clone(p.cfg.Regions)
	if len(regions) == 0 {
		var err error
		regions, err = p.regions.Regions(ctx)
		if err != nil {
			p.logger.Warn("mqtt region listing failed", "error", err)
			return false
		}
	}
	slices.Sort(regions)

	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Equal(regions, p.watched) {
		return false
	}
	p.watched = regions
	return true
}

func (p *Publisher) watchedRegions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.watched)
}

// --- Discovery ---

type sensorDef struct {
	entitySuffix string
	config       SensorConfig
}

func (p *Publisher) sensor(entity, name, icon string) SensorConfig {
	return SensorConfig{
		Name:              name,
		ObjectID:          entity,
		HasEntityName:     true,
		UniqueID:          p.instanceID + "_" + entity,
		StateTopic:        p.stateTopic(entity),
		AvailabilityTopic: p.availabilityTopic(),
		Device:            p.device,
		Icon:              icon,
	}
}

// sensorDefinitions returns the device-level diagnostic sensors
// followed by five sensors per watched region.
func (p *Publisher) sensorDefinitions() []sensorDef {
	uptime := p.sensor("uptime", "Uptime", "mdi:clock-outline")
	uptime.EntityCategory = "diagnostic"

	version := p.sensor("version", "Version", "mdi:tag")
	version.EntityCategory = "diagnostic"

	tokens := p.sensor("tokens_today", "Tokens Today", "mdi:counter")
	tokens.StateClass = "total_increasing"
	tokens.UnitOfMeasurement = "tokens"

	lastCall := p.sensor("last_reasoning_call", "Last Reasoning Call", "mdi:clock-check")
	lastCall.EntityCategory = "diagnostic"

	defs := []sensorDef{
		{"uptime", uptime},
		{"version", version},
		{"tokens_today", tokens},
		{"last_reasoning_call", lastCall},
	}

	for _, region := range p.watchedRegions() {
		aircraft := p.sensor(regionEntity(region, "aircraft"), region+" Aircraft", "mdi:airplane")
		aircraft.StateClass = "measurement"

		anomalies := p.sensor(regionEntity(region, "anomalies"), region+" Anomalies", "mdi:alert-circle-outline")
		anomalies.StateClass = "measurement"

		alt := p.sensor(regionEntity(region, "avg_altitude"), region+" Average Altitude", "mdi:altimeter")
		alt.StateClass = "measurement"
		alt.DeviceClass = "distance"
		alt.UnitOfMeasurement = "m"

		vel := p.sensor(regionEntity(region, "avg_velocity"), region+" Average Velocity", "mdi:speedometer")
		vel.StateClass = "measurement"
		vel.DeviceClass = "speed"
		vel.UnitOfMeasurement = "m/s"

		updated := p.sensor(regionEntity(region, "last_updated"), region+" Last Updated", "mdi:update")
		updated.DeviceClass = "timestamp"

		for _, c := range []SensorConfig{aircraft, anomalies, alt, vel, updated} {
			defs = append(defs, sensorDef{entitySuffix: c.ObjectID, config: c})
		}
	}
	return defs
}

func (p *Publisher) publishDiscovery(ctx context.Context, pub messagePublisher) {
	for _, s := range p.sensorDefinitions() {
		topic := p.discoveryTopic("sensor", s.entitySuffix)
		payload, err := json.Marshal(s.config)
		if err != nil {
			p.logger.Error("mqtt marshal discovery payload",
				"entity", s.entitySuffix, "error", err)
			continue
		}

		if _, err := pub.Publish(ctx, &paho.Publish{
			Topic:   topic,
			Payload: payload,
			QoS:     1,
			Retain:  true,
		}); err != nil {
			p.logger.Warn("mqtt discovery publish failed",
				"entity", s.entitySuffix, "topic", topic, "error", err)
		} else {
			p.logger.Debug("mqtt discovery published",
				"entity", s.entitySuffix, "topic", topic)
		}
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, pub messagePublisher, status string) {
	if _, err := pub.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

// --- Periodic state loop ---

func (p *Publisher) runLoop(ctx context.Context, pub messagePublisher) {
	interval := time.Duration(p.cfg.PublishIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.publishStates(ctx, pub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.refreshRegions(ctx) {
				p.publishDiscovery(ctx, pub)
			}
			p.publishStates(ctx, pub)
		}
	}
}

// states computes the current value of every sensor. A region whose
// snapshot cannot be analyzed is skipped so its sensors keep their
// last retained value.
func (p *Publisher) states(ctx context.Context) map[string]string {
	states := map[string]string{
		"uptime":              buildinfo.Uptime().Truncate(time.Second).String(),
		"version":             buildinfo.Version,
		"tokens_today":        "0",
		"last_reasoning_call": "never",
	}
	if p.tokens != nil {
		input, output, _ := p.tokens.Snapshot()
		states["tokens_today"] = strconv.FormatInt(input+output, 10)
		if last := p.tokens.LastCall(); !last.IsZero() {
			states["last_reasoning_call"] = last.Format(time.RFC3339)
		}
	}

	for _, region := range p.watchedRegions() {
		a, err := p.analyzer.Analyze(ctx, region)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, airspace.ErrNotFound) {
				level = slog.LevelDebug
			}
			p.logger.Log(ctx, level, "mqtt region analysis failed", "region", region, "error", err)
			continue
		}
		states[regionEntity(region, "aircraft")] = strconv.Itoa(a.Metrics.Aircraft)
		states[regionEntity(region, "anomalies")] = strconv.Itoa(len(a.Anomalies))
		states[regionEntity(region, "avg_altitude")] = formatOptional(a.Metrics.AvgAltitude)
		states[regionEntity(region, "avg_velocity")] = formatOptional(a.Metrics.AvgVelocity)
		states[regionEntity(region, "last_updated")] = formatTimestamp(a.LastUpdated)
	}
	return states
}

func (p *Publisher) publishStates(ctx context.Context, pub messagePublisher) {
	states := p.states(ctx)
	for entity, value := range states {
		if _, err := pub.Publish(ctx, &paho.Publish{
			Topic:   p.stateTopic(entity),
			Payload: []byte(value),
			QoS:     0,
			Retain:  true,
		}); err != nil {
			p.logger.Debug("mqtt state publish failed",
				"entity", entity, "error", err)
		}
	}

	p.logger.Debug("mqtt sensor states published", "entities", len(states))
}

func formatOptional(v *float64) string {
	if v == nil {
		return unknownState
	}
	return analysis.FormatNumber(*v)
}

// formatTimestamp normalizes a snapshot timestamp to RFC 3339, which
// HA timestamp sensors require. Unparseable values become unknown.
func formatTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return unknownState
	}
	return t.Format(time.RFC3339)
}
