package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryDelayFromError(nil))
	assert.Equal(t, 7*time.Second, retryDelayFromError(errors.New("Too Many Requests: retry after 7")))
	assert.Equal(t, 3*time.Second, retryDelayFromError(errors.New("Too Many Requests")))
	assert.Equal(t, 2*time.Second, retryDelayFromError(timeoutErr{}))
	assert.Equal(t, 1*time.Second, retryDelayFromError(errors.New("Bad Gateway")))
}

type scriptedGetter struct {
	mu      sync.Mutex
	calls   int
	offsets []int
	cancel  context.CancelFunc
}

func (g *scriptedGetter) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.offsets = append(g.offsets, cfg.Offset)
	switch g.calls {
	case 1:
		return []tgbotapi.Update{{UpdateID: 10}, {UpdateID: 11}}, nil
	case 2:
		return nil, errors.New("Bad Gateway")
	default:
		g.cancel()
		return nil, nil
	}
}

func TestRunPolling_AdvancesOffsetAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &scriptedGetter{cancel: cancel}
	var seen []int

	done := make(chan struct{})
	go func() {
		RunPolling(ctx, g, func(u tgbotapi.Update) { seen = append(seen, u.UpdateID) })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("RunPolling did not stop")
	}
	assert.Equal(t, []int{10, 11}, seen)
	assert.Equal(t, []int{0, 12, 12}, g.offsets)
}

func TestWebhookPath(t *testing.T) {
	p := WebhookPath("123456:SECRET")
	assert.Len(t, p, len("/webhook/")+16)
	assert.NotContains(t, p, "SECRET")
	assert.Equal(t, p, WebhookPath("123456:SECRET"))
	assert.NotEqual(t, p, WebhookPath("123456:OTHER"))
}
