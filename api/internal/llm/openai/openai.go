package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/prompt"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string

	prompts *prompt.Store
	httpc   *http.Client
}

func New(key, model string, prompts *prompt.Store) *Engine {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		BaseURL: defaultBaseURL,
		prompts: prompts,
		// no client timeout: the caller's context bounds the call
		httpc: &http.Client{Transport: tr},
	}
}

// WithHTTPClient overrides the internal HTTP client (e.g., for tests or tracing).
func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	if c != nil {
		e.httpc = c
	}
	return e
}

func (e *Engine) Name() string     { return "gpt" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) WithModel(model string) llm.Client {
	cp := *e
	cp.Model = strings.TrimSpace(model)
	return &cp
}

func (e *Engine) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if e.APIKey == "" {
		return llm.Response{}, errors.New("OPENAI_API_KEY is empty")
	}
	tpl, err := e.prompts.Get(req.Template)
	if err != nil {
		return llm.Response{}, err
	}
	segs, err := tpl.Render(req.Input)
	if err != nil {
		return llm.Response{}, err
	}

	payload, err := json.Marshal(e.requestBody(tpl, segs))
	if err != nil {
		return llm.Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.BaseURL, "/")+"/responses", bytes.NewReader(payload))
	if err != nil {
		return llm.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.APIKey)

	logger.Debugf("openai %s: model=%s bytes=%d", tpl.Name, e.Model, len(payload))
	resp, err := e.httpc.Do(httpReq)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai %s: %w", tpl.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai %s: read body: %w", tpl.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return llm.Response{}, fmt.Errorf("openai %s %d: %s", tpl.Name, resp.StatusCode, truncateBytes(raw, 512))
	}

	out, err := llm.DecodeOutput(tpl, extractResponsesText(raw))
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai %s: %w", tpl.Name, err)
	}
	return out, nil
}

func (e *Engine) requestBody(tpl *prompt.Compiled, segs []prompt.Segment) map[string]any {
	content := make([]any, 0, len(segs))
	for _, s := range segs {
		if s.IsMedia() {
			// the Responses API accepts data URIs in image_url as-is
			content = append(content, map[string]any{"type": "input_image", "image_url": s.MediaURL})
			continue
		}
		content = append(content, map[string]any{"type": "input_text", "text": s.Text})
	}

	schema := prompt.ObjectSchema(tpl.Output)
	delete(schema, "$schema")

	body := map[string]any{
		"model": e.Model,
		"input": []any{
			map[string]any{
				"role": "system",
				"content": []any{
					map[string]any{"type": "input_text", "text": tpl.FormatInstruction()},
				},
			},
			map[string]any{
				"role":    "user",
				"content": content,
			},
		},
		"temperature": 0,
		"text": map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   tpl.Name,
				"strict": true,
				"schema": schema,
			},
		},
	}
	if strings.Contains(e.Model, "gpt-5") {
		body["temperature"] = 1
	}
	return body
}

// extractResponsesText prefers `output_text` and otherwise joins the text
// segments found in output[i].content[j].text.
func extractResponsesText(raw []byte) string {
	type content struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	type output struct {
		Content []content `json:"content"`
	}
	var env struct {
		Output     []output `json:"output"`
		OutputText string   `json:"output_text"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	if s := strings.TrimSpace(env.OutputText); s != "" {
		return s
	}

	var b strings.Builder
	for _, o := range env.Output {
		for _, c := range o.Content {
			if strings.TrimSpace(c.Text) == "" {
				continue
			}
			if c.Type == "output_text" || c.Type == "text" || c.Type == "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
