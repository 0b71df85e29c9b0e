package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"sanskrit-reader/api/internal/prompt"
	"sanskrit-reader/api/internal/util"
)

var (
	ErrNoOutput      = errors.New("model returned no output")
	ErrBadOutput     = errors.New("model output does not match the output schema")
	ErrUnknownEngine = errors.New("unknown llm_name")
)

// Request names a prompt template and carries the record for its input schema.
type Request struct {
	Template string
	Input    map[string]any
}

// Response carries the record matching the template's output schema.
type Response struct {
	Output map[string]any
	Raw    string
}

// Field returns a string property of the output record.
func (r Response) Field(name string) string {
	s, _ := r.Output[name].(string)
	return s
}

// Client sends one rendered prompt to a generative model. One attempt per call.
type Client interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// ModelSwitcher is implemented by clients that can be cloned onto another model.
type ModelSwitcher interface {
	WithModel(model string) Client
}

// DecodeOutput turns raw model text into a schema-checked output record.
func DecodeOutput(tpl *prompt.Compiled, text string) (Response, error) {
	raw := util.StripCodeFences(text)
	if raw == "" {
		return Response{}, ErrNoOutput
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return Response{}, fmt.Errorf("%w: not a JSON object", ErrBadOutput)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	if err := tpl.ValidateOutput(v); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	out, _ := v.(map[string]any)
	return Response{Output: out, Raw: raw}, nil
}

// Engines is the registry of configured clients, keyed by llm_name.
type Engines struct {
	Gemini  Client
	OpenAI  Client
	Default string
}

func (e *Engines) GetEngine(llmName string) (Client, error) {
	name := strings.ToLower(strings.TrimSpace(llmName))
	if name == "" {
		name = strings.ToLower(e.Default)
	}
	var c Client
	switch name {
	case "gemini":
		c = e.Gemini
	case "gpt", "openai":
		c = e.OpenAI
	case "":
		c = e.first()
	}
	if c == nil {
		return nil, fmt.Errorf("%w %q; available: %s", ErrUnknownEngine, llmName, strings.Join(e.Names(), ", "))
	}
	return c, nil
}

// Names lists configured engines.
func (e *Engines) Names() []string {
	var out []string
	if e.Gemini != nil {
		out = append(out, "gemini")
	}
	if e.OpenAI != nil {
		out = append(out, "gpt")
	}
	sort.Strings(out)
	return out
}

func (e *Engines) first() Client {
	if e.Gemini != nil {
		return e.Gemini
	}
	return e.OpenAI
}

// Manager remembers a per-conversation engine choice on top of a default.
type Manager struct {
	def Client
	m   sync.Map // chatID -> Client
}

func NewManager(defaultEngine Client) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) Client {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Client)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, c Client) {
	m.m.Store(chatID, c)
}

func (m *Manager) Reset(chatID int64) {
	m.m.Delete(chatID)
}
