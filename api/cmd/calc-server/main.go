package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mathcanvas/api/internal/config"
	"mathcanvas/api/internal/logging"
	"mathcanvas/api/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "calc-server",
	Short:         "Solve hand-drawn math with a vision model",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, solveCmd, runsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openJournal connects to Postgres when a DSN is configured. A nil db means
// the run journal is disabled.
func openJournal(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sql.DB, *store.RunRepo, error) {
	if cfg.DatabaseURL == "" {
		log.Info("run journal disabled: no database configured")
		return nil, nil, nil
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("db connected", zap.String("dsn", store.SafeDSNSummary(cfg.DatabaseURL)))
	return db, store.NewRunRepo(db), nil
}
