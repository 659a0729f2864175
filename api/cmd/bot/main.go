package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mathcanvas/api/internal/calc"
	"mathcanvas/api/internal/config"
	"mathcanvas/api/internal/httpserver"
	"mathcanvas/api/internal/llm"
	"mathcanvas/api/internal/logging"
	"mathcanvas/api/internal/store"
	"mathcanvas/api/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		return errors.New("missing required env: TELEGRAM_BOT_TOKEN")
	}
	lg, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	engs, closeEngines, err := llm.FromConfig(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeEngines()

	// --- Postgres (optional run journal) ---
	var (
		journal calc.Journal
		ping    func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		lg.Info("db connected", zap.String("dsn", store.SafeDSNSummary(cfg.DatabaseURL)))
		journal = store.NewRunRepo(db)
		ping = db.PingContext
	}

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return err
	}
	lg.Info("authorized", zap.String("bot", bot.Self.UserName))

	r := &telegram.Router{
		Bot:     bot,
		Engines: engs,
		Journal: journal,
		Vars:    &telegram.VarStore{},
		Log:     lg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if ping != nil {
			pctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := ping(pctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})

	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL != "" {
		path, err := r.RegisterWebhook(webhookURL)
		if err != nil {
			return err
		}
		mux.Handle(path, r.WebhookHandler(ctx))
		lg.Info("webhook mode", zap.String("path", path))
	} else {
		// polling needs no webhook; drop a stale one left by an earlier deploy
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			lg.Warn("delete webhook", zap.Error(err))
		}
		lg.Info("polling mode")
	}

	addr := "0.0.0.0:" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.ListenAndServe(gctx, addr, mux, lg)
	})
	if webhookURL == "" {
		g.Go(func() error { return r.RunPolling(gctx) })
	}
	err = g.Wait()
	r.Wait()
	return err
}
