package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/loadsmith/examples/demo"
	"github.com/jihwankim/loadsmith/pkg/config"
	"github.com/jihwankim/loadsmith/pkg/dashboard"
	"github.com/jihwankim/loadsmith/pkg/reporting"
	"github.com/jihwankim/loadsmith/pkg/runner"
	"github.com/jihwankim/loadsmith/pkg/screen"
	"github.com/jihwankim/loadsmith/pkg/stats"
)

var (
	flagScenario  string
	flagBaseURL   string
	flagUsers     int
	flagSpawnRate float64
	flagDuration  time.Duration
	flagSeed      int64
	flagWorkers   int
	flagWeb       bool
	flagPort      int
	flagFormat    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario against a target service",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagScenario, "scenario", "", "scenario name to run (default: the only registered scenario, or load.scenario from config)")
	runCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "target base URL (overrides config)")
	runCmd.Flags().IntVarP(&flagUsers, "users", "u", 0, "target number of concurrent virtual users (overrides config)")
	runCmd.Flags().Float64VarP(&flagSpawnRate, "spawn-rate", "r", 0, "virtual users spawned per second (overrides config)")
	runCmd.Flags().DurationVarP(&flagDuration, "duration", "d", 0, "run duration; 0 runs until stopped (overrides config)")
	runCmd.Flags().Int64Var(&flagSeed, "seed", 0, "random seed for reproducible runs; 0 picks a random seed")
	runCmd.Flags().IntVar(&flagWorkers, "workers", 0, "advisory concurrency ceiling, 0 lets the Go runtime decide (overrides config)")
	runCmd.Flags().BoolVar(&flagWeb, "web", false, "serve a live web dashboard instead of terminal output")
	runCmd.Flags().IntVar(&flagPort, "port", 0, "dashboard listen port (default 8089, overrides config)")
	runCmd.Flags().StringVar(&flagFormat, "format", "text", "terminal report format: text, json, or tui")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flagBaseURL != "" {
		cfg.Load.BaseURL = flagBaseURL
	}
	if flagUsers > 0 {
		cfg.Load.Users = flagUsers
	}
	if flagSpawnRate > 0 {
		cfg.Load.SpawnRate = flagSpawnRate
	}
	if flagDuration > 0 {
		cfg.Load.Duration = flagDuration
	}
	if flagSeed != 0 {
		cfg.Load.Seed = flagSeed
	}
	if flagWorkers != 0 {
		cfg.Load.Workers = flagWorkers
	}
	if flagWeb {
		cfg.Dashboard.Enabled = true
	}
	if flagPort != 0 {
		cfg.Dashboard.Addr = fmt.Sprintf(":%d", flagPort)
	}

	return cfg, nil
}

// registry returns the Registry this binary runs against. cmd/loadsmith
// ships wired to examples/demo; an application embedding loadsmith as a
// library replaces this with its own package shaped like demo and links its
// own main against pkg/runner directly.
func registry() *screen.Registry {
	return demo.Registry()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := registry()

	if flagScenario != "" {
		cfg.Load.Scenario = flagScenario
	}
	if cfg.Load.Scenario == "" {
		names := reg.ScenarioNames()
		if len(names) != 1 {
			return fmt.Errorf("no scenario specified and registry has %d scenarios; pass --scenario", len(names))
		}
		cfg.Load.Scenario = names[0]
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logLevel := reporting.LogLevel(cfg.Logging.Level)
	logFormat := reporting.LogFormat(cfg.Logging.Format)
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{Level: logLevel, Format: logFormat, Output: os.Stderr})

	r := runner.New(cfg, reg, logger)

	goCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var dash *dashboard.Server
	dashErrCh := make(chan error, 1)
	if cfg.Dashboard.Enabled {
		dash = dashboard.New(cfg.Dashboard.Addr, r, cfg.Load.Scenario, logger)
		go func() { dashErrCh <- dash.ListenAndServe(goCtx) }()
		fmt.Printf("dashboard listening on %s\n", cfg.Dashboard.Addr)
	} else {
		progress := reporting.NewProgressReporter(reporting.OutputFormat(flagFormat), logger)
		start := time.Now()
		r.Subscribe(func(snap stats.Snapshot) {
			progress.ReportSnapshot(cfg.Load.Scenario, time.Since(start), snap)
		})
	}

	report, err := r.Run(goCtx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if dash != nil {
		cancel()
		if err := <-dashErrCh; err != nil {
			logger.Warn("dashboard server error", "error", err)
		}
	}

	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	path, err := storage.SaveReport(report)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	formatter := reporting.NewFormatter(logger)
	htmlPath := reporting.GetReportPath(path, reporting.ReportFormatHTML)
	if err := formatter.GenerateReport(report, reporting.ReportFormatHTML, htmlPath); err != nil {
		logger.Warn("failed to render html report", "error", err)
	}

	if !cfg.Dashboard.Enabled {
		progress := reporting.NewProgressReporter(reporting.OutputFormat(flagFormat), logger)
		progress.ReportRunCompleted(report)
		fmt.Printf("\nreport saved to %s\n", path)
		fmt.Printf("html report saved to %s\n", htmlPath)
	}

	if report.TotalRequests > 0 && report.TotalFailures == report.TotalRequests {
		os.Exit(2)
	}
	return nil
}
