package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/prompt"
)

func newTestEngine(t *testing.T, h http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e := New("sk-test", "gpt-4o-mini", prompt.Default())
	e.BaseURL = srv.URL
	return e.WithHTTPClient(srv.Client())
}

func TestGenerate_ImageRequestShape(t *testing.T) {
	var body map[string]any
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"output":[{"content":[{"type":"output_text","text":"{\"translation\":\"Om\"}"}]}]}`))
	})

	uri := "data:image/jpeg;base64,/9g="
	out, err := e.Generate(context.Background(), llm.Request{
		Template: prompt.ImageTranslationName,
		Input:    map[string]any{prompt.ImageURIField: uri},
	})
	require.NoError(t, err)
	assert.Equal(t, "Om", out.Field(prompt.TranslationField))

	input := body["input"].([]any)
	user := input[1].(map[string]any)
	content := user["content"].([]any)
	require.Len(t, content, 3)
	img := content[1].(map[string]any)
	assert.Equal(t, "input_image", img["type"])
	assert.Equal(t, uri, img["image_url"])

	format := body["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, prompt.ImageTranslationName, format["name"])
	assert.Equal(t, true, format["strict"])
	_, hasMeta := format["schema"].(map[string]any)["$schema"]
	assert.False(t, hasMeta)
}

func TestGenerate_OutputTextShortcut(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output_text":"{\"englishTranslation\":\"That thou art\"}"}`))
	})
	out, err := e.Generate(context.Background(), llm.Request{
		Template: prompt.TextTranslationName,
		Input:    map[string]any{prompt.SanskritTextField: "तत् त्वम् असि"},
	})
	require.NoError(t, err)
	assert.Equal(t, "That thou art", out.Field(prompt.EnglishTranslationField))
}

func TestGenerate_HTTPError(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})
	_, err := e.Generate(context.Background(), llm.Request{
		Template: prompt.TextTranslationName,
		Input:    map[string]any{prompt.SanskritTextField: "x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerate_EmptyEnvelopeIsNoOutput(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[]}`))
	})
	_, err := e.Generate(context.Background(), llm.Request{
		Template: prompt.TextTranslationName,
		Input:    map[string]any{prompt.SanskritTextField: "x"},
	})
	assert.True(t, errors.Is(err, llm.ErrNoOutput))
}

func TestRequestBody_GPT5Temperature(t *testing.T) {
	e := New("k", "gpt-5-mini", prompt.Default())
	tpl, err := prompt.Default().Get(prompt.TextTranslationName)
	require.NoError(t, err)
	body := e.requestBody(tpl, []prompt.Segment{{Text: "x"}})
	assert.Equal(t, 1, body["temperature"])
}
