// Package main runs portalkeeper, which keeps a captive-portal network
// session alive by probing reachability and logging in through the portal
// form whenever the connection drops.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/portalkeeper/pkg/browser"
	"github.com/entrhq/portalkeeper/pkg/config"
	"github.com/entrhq/portalkeeper/pkg/history"
	"github.com/entrhq/portalkeeper/pkg/keeper"
	"github.com/entrhq/portalkeeper/pkg/logging"
	"github.com/entrhq/portalkeeper/pkg/portal"
	"github.com/entrhq/portalkeeper/pkg/probe"
	"github.com/entrhq/portalkeeper/pkg/status"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	EnvFile     string
	Headless    bool
	Once        bool
	ShowVersion bool

	// History prints that many recent history events and exits
	History int

	// headlessSet records whether -headless was given explicitly
	headlessSet bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("portalkeeper v%s\n", version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := run(ctx, cli); err != nil {
		cancel()
		log.Printf("portalkeeper failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cli.EnvFile, "env-file", "", "Env file with APP_NAME and APP_PASSWORD (default .env if present)")
	flag.BoolVar(&cli.Headless, "headless", false, "Run the browser without a window")
	flag.BoolVar(&cli.Once, "once", false, "Run a single check cycle and exit")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")
	flag.IntVar(&cli.History, "history", 0, "Print the N most recent history events and exit (needs history.path)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "portalkeeper - captive portal keepalive\n\n")
		fmt.Fprintf(os.Stderr, "Usage: portalkeeper [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Watch the connection with defaults\n")
		fmt.Fprintf(os.Stderr, "  APP_NAME=alice APP_PASSWORD=secret portalkeeper\n\n")
		fmt.Fprintf(os.Stderr, "  # Headless, from cron\n")
		fmt.Fprintf(os.Stderr, "  portalkeeper -config keeper.yaml -headless -once\n\n")
		fmt.Fprintf(os.Stderr, "  # Review the last outages\n")
		fmt.Fprintf(os.Stderr, "  portalkeeper -config keeper.yaml -history 20\n\n")
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			cli.headlessSet = true
		}
	})
	return cli
}

// loadConfig builds the configuration from the file (if any) and flags.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cli.ConfigFile != "" {
		var err error
		cfg, err = config.LoadFile(cli.ConfigFile)
		if err != nil {
			return nil, err
		}
	}

	if cli.headlessSet {
		cfg.Browser.Headless = cli.Headless
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run wires the components and drives the loop until ctx is cancelled.
func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	level, _ := logging.ParseVerbosity(cfg.Logging.Verbosity)
	logging.SetLevel(level)

	logger, err := logging.NewLogger("main")
	if err != nil {
		// NewLogger hands back a stderr logger in this case
		logger.Warnf("file logging unavailable, using stderr: %v", err)
	}
	defer logger.Close()
	logger.Infof("portalkeeper v%s starting (session %s, config %q)", version, logging.GetSessionID(), cfg.ConfigFilePath)

	if cli.History > 0 {
		return printHistory(ctx, os.Stdout, cfg.History.Path, cli.History, logger.With("history"))
	}

	creds, err := config.LoadCredentials(cli.EnvFile)
	if err != nil {
		return err
	}

	prober, err := probe.New(cfg.ProberConfig(), logger.With("probe"))
	if err != nil {
		return fmt.Errorf("failed to create prober: %w", err)
	}

	manager := browser.NewManager(cfg.Browser.Channel, logger.With("browser"))
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize browser driver: %w", err)
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Warnf("browser shutdown: %v", err)
		}
	}()

	driver := portal.NewDriver(manager, creds, cfg.PortalOptions(), logger.With("portal"))

	reporters := status.Multi{status.NewConsole(os.Stdout)}
	if cfg.Notify.Desktop {
		reporters = append(reporters, status.NewDesktop(logger.With("notify")))
	}
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, cfg.History.Path, logger.With("history"))
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer store.Close()
		reporters = append(reporters, store)
	}

	loop := keeper.New(prober, driver, keeper.Options{
		Interval: cfg.Interval,
		Reporter: reporters,
		Logger:   logger.With("keeper"),
	})

	if cli.Once {
		if err := loop.Cycle(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	return loop.Run(ctx)
}

// printHistory writes the latest n events from the history database, newest
// first.
func printHistory(ctx context.Context, w io.Writer, path string, n int, logger *logging.Logger) error {
	if path == "" {
		return fmt.Errorf("history is disabled: set history.path in the config file")
	}

	store, err := history.Open(ctx, path, logger)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	events, err := store.Recent(ctx, n)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "No history recorded yet.")
		return nil
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %-18s", ev.At.Local().Format(time.DateTime), ev.Kind)
		if ev.AttemptID != "" {
			line += "  " + ev.AttemptID
		}
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
