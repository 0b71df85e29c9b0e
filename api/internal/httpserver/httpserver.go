package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sanskrit-reader/api/internal/handle"
	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/web"
)

// Route mounts an extra handler, e.g. the Telegram webhook.
type Route struct {
	Pattern string
	Handler http.Handler
}

type Options struct {
	// Handle serves the JSON API; nil leaves /api unmounted (bot-only mode).
	Handle *handle.Handle
	// Page serves the web UI at /; nil answers / with a plain banner.
	Page *web.Page
	// Health is probed by /healthz when set.
	Health func(ctx context.Context) error
	Routes []Route
}

func NewMux(o Options) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if o.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := o.Health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if o.Handle != nil {
		mux.HandleFunc("/api/translate/text", o.Handle.TranslateText)
		mux.HandleFunc("/api/translate/image", o.Handle.TranslateImage)
	}

	if o.Page != nil {
		mux.Handle("/", web.Handler(*o.Page))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("sanskrit-reader telegram bot"))
		})
	}

	for _, rt := range o.Routes {
		mux.Handle(rt.Pattern, rt.Handler)
	}
	return mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	logger.Infof("http: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
