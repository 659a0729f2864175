package telegram

import (
	"context"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// WebhookPath is the secret path updates are posted to. It is derived from
// the bot token so it stays stable across restarts.
func WebhookPath(token string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return "/webhook/" + strconv.FormatUint(h.Sum64(), 16)
}

// RegisterWebhook points Telegram at baseURL + WebhookPath.
func (r *Router) RegisterWebhook(baseURL string) (string, error) {
	path := WebhookPath(r.Bot.Token)
	wh, err := tgbotapi.NewWebhook(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return "", err
	}
	wh.DropPendingUpdates = true
	if _, err := r.Bot.Request(wh); err != nil {
		return "", err
	}
	return path, nil
}

// WebhookHandler acknowledges each update at once and solves it in the
// background under ctx.
func (r *Router) WebhookHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		upd, err := r.Bot.HandleUpdate(req)
		if err != nil {
			r.Log.Warn("bad webhook update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		r.dispatch(ctx, *upd)
	})
}
