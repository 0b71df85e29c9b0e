// Package web serves the single-page translator UI.
package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"sanskrit-reader/api/internal/logger"
)

//go:embed page.html.tmpl
var pageSrc string

var page = template.Must(template.New("page").Parse(pageSrc))

type Page struct {
	Engines       []string
	Default       string
	MaxImageBytes int64
}

// Handler renders the page on GET /. Any other path is a 404.
func Handler(p Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "GET only", http.StatusMethodNotAllowed)
			return
		}
		var buf bytes.Buffer
		if err := page.Execute(&buf, p); err != nil {
			logger.Errorf("render page: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}
