package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"WerchterMonitor/internal/app"
	"WerchterMonitor/internal/config"
	"WerchterMonitor/internal/logging"
	"WerchterMonitor/pkg/logger"
)

const (
	exitOK          = 0
	exitConfigError = 1
	exitFailure     = 2
)

func main() {
	os.Exit(execute())
}

type rootOptions struct {
	configPath string
	logLevel   string
	once       bool
}

func execute() int {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "werchtermonitor",
		Short:         "Watch the Rock Werchter news page and forward new items to Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				if opts.once {
					return a.RunOnce(ctx)
				}
				return a.Run(ctx)
			})
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML or TOML config file (overrides $MONITOR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides $LOG_LEVEL)")
	rootCmd.Flags().BoolVar(&opts.once, "once", false, "run a single check and exit")

	var maxAgeDays int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop processed records older than the retention window and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				removed, err := a.Prune(ctx, maxAgeDays)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d records, %d remaining\n", removed, len(a.Records()))
				return nil
			})
		},
	}
	pruneCmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "retention window in days (default from config)")
	rootCmd.AddCommand(pruneCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("fatal", "error", err)
		if app.IsConfigError(err) {
			return exitConfigError
		}
		return exitFailure
	}
	return exitOK
}

func withApp(ctx context.Context, opts *rootOptions, fn func(context.Context, *app.Application) error) error {
	cfg, err := config.Loader{ConfigPath: opts.configPath}.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	var logOpts []logging.Option
	if cfg.Logging.File != "" && cfg.Logging.File != "-" {
		logOpts = append(logOpts, logging.WithFile(cfg.Logging.File, 5, 5))
	}
	baseLogger, closeLog := logging.New(cfg.Logging.Level, logOpts...)
	defer func() { _ = closeLog() }()

	slog.SetDefault(baseLogger)
	logger.RedirectStdLog(baseLogger, slog.LevelWarn)

	baseLogger.Info("configuration loaded", "config", cfg)
	for _, w := range cfg.Warnings() {
		baseLogger.Warn(w)
	}

	a, err := app.New(ctx, cfg, baseLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			baseLogger.Error("close store", "error", err)
		}
	}()

	if err := fn(ctx, a); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
