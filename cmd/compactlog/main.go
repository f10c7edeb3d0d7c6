package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/casskit/compactlog/internal/config"
	"github.com/casskit/compactlog/internal/metrics"
	"github.com/casskit/compactlog/internal/report"
	"github.com/casskit/compactlog/internal/server"
	"github.com/casskit/compactlog/internal/service"
)

// Exit codes: 0 clean, 1 batch completed with per-event errors,
// 2 setup failure (bad config, unwritable output).
const (
	exitEventErrors = 1
	exitSetupError  = 2
)

var (
	configPath string
	outputPath string
	pretty     bool
	workers    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "compactlog [flags] <log-file>...",
		Short: "Extract correlated compaction task records from storage-engine logs",
		Long: `compactlog scans storage-engine log files for compaction start and end
lines, correlates them by task identifier, and emits one JSON record per
compaction task. Files ending in .gz are decompressed transparently; a
missing file is skipped with a warning.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "report destination (\"-\" for stdout)")
	rootCmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON report")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of files parsed concurrently")

	if err := rootCmd.Execute(); err != nil {
		code := exitSetupError
		if err == errEventErrors {
			code = exitEventErrors
		} else {
			fmt.Fprintf(os.Stderr, "compactlog: %v\n", err)
		}
		os.Exit(code)
	}
}

// errEventErrors signals that the batch finished and the report was
// written, but some events were rejected.
var errEventErrors = fmt.Errorf("batch completed with event errors")

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	m := metrics.New(prometheus.DefaultRegisterer)

	if cfg.Metrics.Enabled {
		ms := server.NewMetricsServer(&server.MetricsServerConfig{
			Port: cfg.Metrics.Port,
			Path: cfg.Metrics.Path,
		}, logger)
		ms.Start()
		defer ms.Stop()
	}

	runner := service.NewRunner(&service.RunnerConfig{
		Workers:      cfg.Parser.Workers,
		MaxLineBytes: cfg.Parser.MaxLineBytes,
		Logger:       logger,
		Metrics:      m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx, args)
	if err != nil {
		return fmt.Errorf("batch aborted: %w", err)
	}

	if err := writeReport(cfg, result); err != nil {
		return err
	}

	if result.EventErrors != nil {
		logger.Error("Some events were rejected", zap.Error(result.EventErrors))
		return errEventErrors
	}
	return nil
}

// loadConfig loads the config file (defaults when none is given) and
// applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("output") {
		cfg.Output.Path = outputPath
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Output.Pretty = pretty
	}
	if cmd.Flags().Changed("workers") {
		cfg.Parser.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// writeReport renders the task map to the configured destination.
func writeReport(cfg *config.Config, result *service.Result) error {
	out := os.Stdout
	if cfg.Output.Path != "-" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := report.WriteJSON(out, result.Correlator, cfg.Output.Pretty); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// initLogger initializes the zap logger
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	// The report goes to stdout; keep diagnostics on stderr.
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}
