package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"polltrack/internal/config"
	"polltrack/internal/storage"
)

type app struct {
	cfg    config.Config
	tables *config.Tables
	logger *zap.Logger
}

func main() {
	cfg, err := config.Load()
	must(err)
	tables, err := cfg.LoadTables()
	must(err)
	logger, err := newLogger(cfg)
	must(err)
	defer func() { _ = logger.Sync() }()

	a := &app{cfg: cfg, tables: tables, logger: logger}

	rootCmd := &cobra.Command{
		Use:   "polltrack",
		Short: "Extract Westminster voting intention polls from announcement posts",
		Long: `polltrack turns "Westminster voting intention" posts into a dated
per-party vote share dataset, optionally merged with the UK Polling Report
history file.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		a.postsImportCmd(),
		a.postsDumpCmd(),
		a.extractCmd(),
		a.historyImportCmd(),
		a.exportXLSXCmd(),
		a.showCmd(),
		a.pollstersCmd(),
		a.runCmd(),
		a.watchCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) openDB() (*storage.DB, error) {
	return storage.Open(a.cfg.DBPath)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
