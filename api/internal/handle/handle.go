package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/translate"
)

type Handle struct {
	engs          *llm.Engines
	modelTimeout  time.Duration
	maxImageBytes int64
	journal       translate.Journal
}

type Option func(*Handle)

// WithModelTimeout sets the default per-request model deadline; 0 means none.
func WithModelTimeout(d time.Duration) Option {
	return func(h *Handle) { h.modelTimeout = d }
}

func WithMaxImageBytes(n int64) Option {
	return func(h *Handle) { h.maxImageBytes = n }
}

func WithJournal(j translate.Journal) Option {
	return func(h *Handle) { h.journal = j }
}

func New(engs *llm.Engines, opts ...Option) *Handle {
	h := &Handle{engs: engs}
	for _, o := range opts {
		o(h)
	}
	return h
}

// service binds the translate handlers to the engine the caller picked.
func (h *Handle) service(llmName string) (*translate.Service, error) {
	engine, err := h.engs.GetEngine(llmName)
	if err != nil {
		return nil, err
	}
	opts := []translate.Option{translate.WithMaxImageBytes(h.maxImageBytes)}
	if h.journal != nil {
		opts = append(opts, translate.WithJournal(h.journal))
	}
	return translate.New(engine, opts...), nil
}

// requestContext applies X-Request-Timeout / ?timeoutSec= (seconds), else the configured default.
func (h *Handle) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := h.modelTimeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	if deadline <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), deadline)
}

func writeResult(w http.ResponseWriter, res translate.Result) {
	code := http.StatusOK
	switch res.Kind {
	case translate.KindValidation:
		code = http.StatusBadRequest
	case translate.KindInvocation:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, res)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, translate.Result{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
