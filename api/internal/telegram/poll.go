package telegram

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxInFlight bounds the number of updates solved at the same time.
const maxInFlight = 8

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// dispatch handles upd on the shared worker group, blocking while
// maxInFlight updates are already being solved.
func (r *Router) dispatch(ctx context.Context, upd tgbotapi.Update) {
	r.jobsOnce.Do(func() { r.jobs.SetLimit(maxInFlight) })
	r.jobs.Go(func() error {
		r.HandleUpdate(ctx, upd)
		return nil
	})
}

// Wait blocks until every dispatched update is handled.
func (r *Router) Wait() {
	_ = r.jobs.Wait()
}

// RunPolling long-polls Telegram until ctx is done.
func (r *Router) RunPolling(ctx context.Context) error {
	const (
		baseDelay = 1 * time.Second
		maxDelay  = 15 * time.Second
	)

	offset := 0
	for {
		if ctx.Err() != nil {
			r.Log.Info("polling stopped")
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := r.Bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			r.Log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleepCtx(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			r.dispatch(ctx, upd)
		}

		if len(updates) == 0 {
			sleepCtx(ctx, 200*time.Millisecond)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
