// Airspace is a copilot that answers traveler and operator questions
// about live airspace.
//
// It reads per-region flight snapshots, computes metrics and anomalies,
// and runs a two-stage reasoning pipeline: an operations report whose
// HANDOFF section feeds a short traveler-facing reply. Configuration is
// loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	airspace serve                       Start the API server
//	airspace init [dir]                  Write an example config
//	airspace ask [-region r] [-callsign c] [question]
//	airspace analyze <region>            Print a region analysis
//	airspace regions                     List regions with snapshots
//	airspace flight <callsign>           Locate a flight across regions
//	airspace version                     Print version and build information
//	airspace -o json <command>           Output as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nugget/airspace-copilot/internal/airspace"
	"github.com/nugget/airspace-copilot/internal/analysis"
	"github.com/nugget/airspace-copilot/internal/api"
	"github.com/nugget/airspace-copilot/internal/buildinfo"
	"github.com/nugget/airspace-copilot/internal/config"
	"github.com/nugget/airspace-copilot/internal/connwatch"
	"github.com/nugget/airspace-copilot/internal/defaults"
	"github.com/nugget/airspace-copilot/internal/mqtt"
	"github.com/nugget/airspace-copilot/internal/pipeline"
)

// Defaults for the ask command.
const (
	defaultCallsign = "TEST123"
	defaultQuestion = "Is my flight on time?"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates to [run], keeping os.Exit and os.Args out of the
// application logic so the lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. ctx controls the process lifetime,
// structured logs go to stderr and command output to stdout, and args
// is os.Args[1:]. Arguments are parsed by hand because the flag
// package's globals interfere with parallel tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args) && command == "":
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config=") && command == "":
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command == "" {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
			cmdArgs = append(cmdArgs, args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stderr, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "analyze":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: airspace analyze <region>")
		}
		return runAnalyze(ctx, stdout, stderr, configPath, outputFmt, cmdArgs[0])
	case "regions":
		return runRegions(ctx, stdout, stderr, configPath, outputFmt)
	case "flight":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: airspace flight <callsign>")
		}
		return runFlight(ctx, stdout, stderr, configPath, outputFmt, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		return writeJSON(w, info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "module_version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-16s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Airspace Copilot - live airspace answers for travelers and operators")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: airspace [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                 Start the API server")
	fmt.Fprintln(w, "  init [dir]            Write an example config.yaml (default: .)")
	fmt.Fprintln(w, "  ask [question]        Run the ops and traveler pipeline once")
	fmt.Fprintln(w, "      -region <r>       Region to analyze (default: config default_region)")
	fmt.Fprintln(w, "      -callsign <c>     Flight callsign (default: "+defaultCallsign+")")
	fmt.Fprintln(w, "  analyze <region>      Print metrics and anomalies for a region")
	fmt.Fprintln(w, "  regions               List regions with snapshots")
	fmt.Fprintln(w, "  flight <callsign>     Locate a flight across regions")
	fmt.Fprintln(w, "  version               Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/airspace-copilot/config.yaml, /etc/airspace-copilot/config.yaml")
	return nil
}

// runInit writes the example configuration into dir. An existing
// config.yaml is never overwritten.
func runInit(w io.Writer, dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "data", "snapshots"), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")
	written, err := writeIfMissing(path, defaults.ConfigYAML)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(w, "wrote %s\n", path)
	} else {
		fmt.Fprintf(w, "kept existing %s\n", path)
	}
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, and reports whether it wrote.
func writeIfMissing(path string, content []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// parseAskArgs extracts -region and -callsign from the ask arguments;
// the remaining words form the question.
func parseAskArgs(args []string) (pipeline.Input, error) {
	var in pipeline.Input
	var words []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-region" && i+1 < len(args):
			in.Region = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-region="):
			in.Region = strings.TrimPrefix(args[i], "-region=")
		case args[i] == "-callsign" && i+1 < len(args):
			in.Callsign = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-callsign="):
			in.Callsign = strings.TrimPrefix(args[i], "-callsign=")
		case strings.HasPrefix(args[i], "-"):
			return in, fmt.Errorf("unknown ask flag: %s", args[i])
		default:
			words = append(words, args[i])
		}
	}
	in.Question = strings.Join(words, " ")
	if in.Callsign == "" {
		in.Callsign = defaultCallsign
	}
	if in.Question == "" {
		in.Question = defaultQuestion
	}
	return in, nil
}

// runAsk runs the pipeline once and prints the result.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, args []string) error {
	in, err := parseAskArgs(args)
	if err != nil {
		return err
	}

	a, closeApp, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer closeApp()

	if in.Region == "" {
		in.Region = a.cfg.DefaultRegion
	}

	result, err := a.pipeline.Ask(ctx, in)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if outputFmt == "json" {
		return writeJSON(stdout, result)
	}
	fmt.Fprintln(stdout, "=== Ops report ===")
	fmt.Fprintln(stdout, result.OpsReport)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "=== Traveler reply ===")
	fmt.Fprintln(stdout, result.TravelerResponse)
	return nil
}

// runAnalyze prints the analysis for one region. No reasoning model
// is contacted.
func runAnalyze(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, region string) error {
	a, closeApp, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer closeApp()

	res, err := a.engine.Analyze(ctx, region)
	if err != nil {
		return err
	}
	if outputFmt == "json" {
		return writeJSON(stdout, res)
	}

	fmt.Fprintln(stdout, res.Summary)
	for _, an := range res.Anomalies {
		fmt.Fprintf(stdout, "  %-10s %-32s %v\n", an.Callsign, an.Issue, formatValue(an.Value))
	}
	return nil
}

// formatValue renders an anomaly value the way summaries do.
func formatValue(v any) string {
	if f, ok := v.(float64); ok {
		return analysis.FormatNumber(f)
	}
	return fmt.Sprint(v)
}

// runRegions lists regions that have a snapshot.
func runRegions(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string) error {
	a, closeApp, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer closeApp()

	regions, err := a.store.Regions(ctx)
	if err != nil {
		return err
	}
	if outputFmt == "json" {
		return writeJSON(stdout, map[string][]string{"regions": regions})
	}
	for _, r := range regions {
		fmt.Fprintln(stdout, r)
	}
	return nil
}

// runFlight locates a callsign and prints its flight context.
func runFlight(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, callsign string) error {
	a, closeApp, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer closeApp()

	fc, err := a.resolver.FlightContext(ctx, callsign)
	if err != nil {
		return err
	}
	if outputFmt == "json" {
		return writeJSON(stdout, fc)
	}
	if !fc.Found {
		fmt.Fprintln(stdout, fc.Status)
		return nil
	}
	fmt.Fprintf(stdout, "%s in %s (snapshot %s)\n", airspace.NormalizeCallsign(callsign), fc.Region, fc.LastUpdated)
	fmt.Fprintln(stdout, fc.Status)
	return nil
}

// runServe starts the API server and, when configured, the MQTT
// publisher, then blocks until SIGINT or SIGTERM.
//
// The shutdown sequence is:
//  1. The signal cancels the context
//  2. The MQTT publisher announces "offline" and disconnects
//  3. The HTTP server drains in-flight requests
//  4. The usage database is closed via defer
func runServe(ctx context.Context, stderr io.Writer, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, closeApp, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer closeApp()
	logger := a.logger
	logger.Info("starting airspace-copilot",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"built", buildinfo.BuildTime,
	)

	deps := connwatch.NewMonitor(logger.With("component", "connwatch"))
	defer deps.Stop()
	// Hosted providers bill the ping, so it runs less often.
	deps.Watch(ctx, connwatch.Check{
		Name:     "reasoning",
		Probe:    a.llm.Ping,
		Schedule: connwatch.Schedule{Interval: 5 * time.Minute},
		OnChange: a.metrics.ObserveDependency,
	})
	deps.Watch(ctx, connwatch.Check{
		Name: "snapshots",
		Probe: func(ctx context.Context) error {
			_, err := a.store.Regions(ctx)
			return err
		},
		OnChange: a.metrics.ObserveDependency,
	})

	var publisher *mqtt.Publisher
	if a.cfg.MQTT.Configured() {
		instanceID, err := mqtt.LoadOrCreateInstanceID(a.cfg.DataDir)
		if err != nil {
			return fmt.Errorf("mqtt instance id: %w", err)
		}
		publisher = mqtt.New(a.cfg.MQTT, instanceID, a.store, a.engine, a.tokens, logger.With("component", "mqtt"))
		go func() {
			if err := publisher.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
		logger.Info("mqtt publisher enabled", "broker", a.cfg.MQTT.Broker, "device", a.cfg.MQTT.DeviceName)
	}

	srvCfg := api.Config{
		Address:       a.cfg.Listen.Address,
		Port:          a.cfg.Listen.Port,
		DefaultRegion: a.cfg.DefaultRegion,
		Snapshots:     a.store,
		Analyzer:      a.engine,
		Locator:       a.locator,
		Pipeline:      a.pipeline,
		Dependencies:  deps,
		Logger:        logger.With("component", "api"),
	}
	if a.usage != nil {
		srvCfg.Usage = a.usage
	}
	if a.metrics != nil {
		srvCfg.Metrics = a.metrics.Handler()
	}
	server := api.NewServer(srvCfg)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if publisher != nil {
			if err := publisher.Stop(shutdownCtx); err != nil {
				logger.Warn("mqtt disconnect failed", "error", err)
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api shutdown failed", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("airspace-copilot stopped")
	return nil
}

// loadConfig locates and parses the YAML configuration file. An
// explicit path must exist. Without one, the search path is tried and
// the built-in defaults apply when nothing is found.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		cfg := config.Default()
		return cfg, "", cfg.Validate()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
