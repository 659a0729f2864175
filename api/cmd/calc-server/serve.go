package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mathcanvas/api/internal/calc"
	"mathcanvas/api/internal/handle"
	"mathcanvas/api/internal/httpserver"
	"mathcanvas/api/internal/llm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.Validate(); err != nil {
		return err
	}

	engs, closeEngines, err := llm.FromConfig(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeEngines()

	db, repo, err := openJournal(ctx, cfg, log)
	if err != nil {
		return err
	}
	var journal calc.Journal
	if db != nil {
		defer db.Close()
		journal = repo
	}

	h := handle.New(engs, journal, log, cfg.MaxBodyBytes)
	if db != nil {
		h.Ping = db.PingContext
	}

	addr := "0.0.0.0:" + cfg.Port
	log.Info("listening", zap.String("addr", addr))
	return httpserver.ListenAndServe(ctx, addr, h.Routes(cfg.AllowedOrigins), log)
}
