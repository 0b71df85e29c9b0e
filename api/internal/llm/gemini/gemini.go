package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/prompt"
	"sanskrit-reader/api/internal/util"
)

// call performs one GenerateContent round trip. Swapped out in tests.
type call func(ctx context.Context, e *Engine, system string, schema *genai.Schema, parts []genai.Part) (*genai.GenerateContentResponse, error)

type Engine struct {
	APIKey string
	Model  string

	prompts *prompt.Store
	do      call
}

func New(apiKey, model string, prompts *prompt.Store) *Engine {
	return &Engine{
		APIKey:  strings.TrimSpace(apiKey),
		Model:   strings.TrimSpace(model),
		prompts: prompts,
		do:      generateContent,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// WithModel returns a copy bound to another Gemini model.
func (e *Engine) WithModel(model string) llm.Client {
	cp := *e
	cp.Model = strings.TrimSpace(model)
	return &cp
}

// Generate renders the template, sends text and inline image parts, and
// returns the JSON reply checked against the template's output schema.
func (e *Engine) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if e.APIKey == "" {
		return llm.Response{}, errors.New("GEMINI_API_KEY is empty")
	}
	tpl, err := e.prompts.Get(req.Template)
	if err != nil {
		return llm.Response{}, err
	}
	segs, err := tpl.Render(req.Input)
	if err != nil {
		return llm.Response{}, err
	}
	parts, err := buildParts(segs)
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini %s: %w", tpl.Name, err)
	}

	logger.Debugf("gemini %s: model=%s parts=%d", tpl.Name, e.Model, len(parts))
	resp, err := e.do(ctx, e, tpl.FormatInstruction(), responseSchema(tpl.Output), parts)
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini %s: %w", tpl.Name, err)
	}
	out, err := llm.DecodeOutput(tpl, firstText(resp))
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini %s: %w", tpl.Name, err)
	}
	return out, nil
}

func generateContent(ctx context.Context, e *Engine, system string, schema *genai.Schema, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	return m.GenerateContent(ctx, parts...)
}

// buildParts maps prompt segments onto genai parts; media data URIs become inline blobs.
func buildParts(segs []prompt.Segment) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(segs))
	for _, s := range segs {
		if !s.IsMedia() {
			parts = append(parts, genai.Text(s.Text))
			continue
		}
		data, hint, err := util.DecodeBase64MaybeDataURL(s.MediaURL)
		if err != nil {
			return nil, fmt.Errorf("bad media data uri: %w", err)
		}
		parts = append(parts, genai.Blob{MIMEType: util.PickMIME("", hint, data), Data: data})
	}
	return parts, nil
}

func responseSchema(f prompt.Field) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			f.Name: {Type: genai.TypeString, Description: f.Description},
		},
		Required: []string{f.Name},
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
