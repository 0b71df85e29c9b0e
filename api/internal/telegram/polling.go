package telegram

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sanskrit-reader/api/internal/logger"
)

type updatesGetter interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
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

// RunPolling long-polls getUpdates until ctx is cancelled. Errors back off, never exit.
func RunPolling(ctx context.Context, bot updatesGetter, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		if ctx.Err() != nil {
			logger.Infof("polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			logger.Warnf("polling error: %v; retry in %v", err, d)
			if !sleepCtx(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 && !sleepCtx(ctx, 200*time.Millisecond) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// SetWebhook registers <baseURL>/webhook/<hash of token> with Telegram and returns the local path.
func SetWebhook(bot *tgbotapi.BotAPI, baseURL string) (string, error) {
	path := WebhookPath(bot.Token)
	wh, err := tgbotapi.NewWebhook(strings.TrimRight(baseURL, "/") + path)
	if err != nil {
		return "", err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return "", err
	}
	return path, nil
}

// DeleteWebhook switches the bot back to getUpdates.
func DeleteWebhook(bot *tgbotapi.BotAPI) error {
	_, err := bot.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}

// WebhookHandler acknowledges each update at once and handles it in the background.
func WebhookHandler(bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upd, err := bot.HandleUpdate(r)
		if err != nil {
			logger.Warnf("webhook: %v", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		go handle(*upd)
	}
}

func WebhookPath(token string) string {
	return "/webhook/" + shortHash(token)
}

// shortHash is FNV-1a, stable per token; it keeps the token itself out of the URL.
func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
