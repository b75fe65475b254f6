// Package snapshot is the single source of truth for flight state. It
// resolves a region identifier to the region's most recent telemetry
// snapshot, enumerates known regions, and reads the shared alert
// collection.
//
// Snapshots are flat JSON files named <region>.json that the ingestion
// job rewrites in full on every refresh. Where those files live is
// abstracted behind [Source]: a local directory ([DirSource]) or an S3
// bucket prefix ([S3Source]). The Store adds validation on top so that
// every caller sees the same three outcomes: a parsed value,
// [airspace.ErrNotFound], or [airspace.ErrCorruptData].
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/nugget/airspace-copilot/internal/airspace"
)

// Source reads raw snapshot and alert documents from storage.
// Implementations return an error wrapping [airspace.ErrNotFound] when
// the requested document does not exist.
type Source interface {
	// ReadSnapshot returns the raw bytes of <region>.json.
	ReadSnapshot(ctx context.Context, region string) ([]byte, error)

	// ListSnapshots returns the region identifiers of every stored
	// snapshot in no particular order. A missing location is not an
	// error; it yields an empty list.
	ListSnapshots(ctx context.Context) ([]string, error)

	// ReadAlerts returns the raw bytes of the alert collection.
	ReadAlerts(ctx context.Context) ([]byte, error)
}

// regionPattern restricts region identifiers to characters that are
// safe to embed in a file name or object key.
var regionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidRegion reports whether region is a well-formed region identifier.
func ValidRegion(region string) bool {
	return regionPattern.MatchString(region)
}

// Store validates and decodes documents from a [Source]. It holds no
// mutable state and is safe for concurrent use.
type Store struct {
	src    Source
	logger *slog.Logger
}

// NewStore creates a Store reading from src.
func NewStore(src Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{src: src, logger: logger}
}

// Snapshot returns the latest snapshot for region.
func (s *Store) Snapshot(ctx context.Context, region string) (*airspace.Snapshot, error) {
	if !ValidRegion(region) {
		return nil, fmt.Errorf("snapshot for region %q: %w", region, airspace.ErrNotFound)
	}

	raw, err := s.src.ReadSnapshot(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("snapshot for region %q: %w", region, err)
	}

	if err := loadSchemas(); err != nil {
		return nil, err
	}
	if err := validate(schemas.snapshot, raw); err != nil {
		s.logger.Warn("snapshot failed validation", "region", region, "error", err)
		return nil, fmt.Errorf("snapshot for region %q: %w: %v", region, airspace.ErrCorruptData, err)
	}

	var snap airspace.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("snapshot for region %q: %w: %v", region, airspace.ErrCorruptData, err)
	}
	if snap.States == nil {
		snap.States = []airspace.FlightState{}
	}
	return &snap, nil
}

// Regions returns the identifiers of all stored snapshots sorted
// lexicographically. The order is part of the contract: cross-region
// lookups rely on it for deterministic tie-breaking.
func (s *Store) Regions(ctx context.Context) ([]string, error) {
	names, err := s.src.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}

	regions := make([]string, 0, len(names))
	for _, name := range names {
		if !ValidRegion(name) {
			s.logger.Debug("ignoring snapshot with unusable name", "name", name)
			continue
		}
		regions = append(regions, name)
	}
	sort.Strings(regions)
	return regions, nil
}

// Alerts returns the shared alert collection. An absent alerts document
// is the normal state of a freshly bootstrapped installation and yields
// an empty collection rather than an error.
func (s *Store) Alerts(ctx context.Context) (*airspace.AlertsResponse, error) {
	raw, err := s.src.ReadAlerts(ctx)
	if errors.Is(err, airspace.ErrNotFound) {
		return airspace.EmptyAlerts(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read alerts: %w", err)
	}

	if err := loadSchemas(); err != nil {
		return nil, err
	}
	if err := validate(schemas.alerts, raw); err != nil {
		s.logger.Warn("alerts failed validation", "error", err)
		return nil, fmt.Errorf("alerts: %w: %v", airspace.ErrCorruptData, err)
	}

	var alerts airspace.AlertsResponse
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return nil, fmt.Errorf("alerts: %w: %v", airspace.ErrCorruptData, err)
	}
	if alerts.Alerts == nil {
		alerts.Alerts = []airspace.Alert{}
	}
	return &alerts, nil
}
