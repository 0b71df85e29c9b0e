package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiled is a template together with its compiled input and output schemas.
type Compiled struct {
	Template
	in  *jsonschema.Schema
	out *jsonschema.Schema
}

// Store is the read-only set of templates known to the engines.
type Store struct {
	byName map[string]*Compiled
}

func NewStore(tpls ...Template) (*Store, error) {
	s := &Store{byName: make(map[string]*Compiled, len(tpls))}
	for _, t := range tpls {
		if _, dup := s.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate template %s", t.Name)
		}
		if !strings.Contains(t.Body, t.placeholder()) {
			return nil, fmt.Errorf("template %s: placeholder %s missing", t.Name, t.placeholder())
		}
		in, err := compileSchema(t.Name+".input.json", ObjectSchema(t.Input))
		if err != nil {
			return nil, fmt.Errorf("template %s input schema: %w", t.Name, err)
		}
		out, err := compileSchema(t.Name+".output.json", ObjectSchema(t.Output))
		if err != nil {
			return nil, fmt.Errorf("template %s output schema: %w", t.Name, err)
		}
		s.byName[t.Name] = &Compiled{Template: t, in: in, out: out}
	}
	return s, nil
}

// Default holds the text and image translation templates.
func Default() *Store {
	s, err := NewStore(TextTranslation, ImageTranslation)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Store) Get(name string) (*Compiled, error) {
	if c, ok := s.byName[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
}

// Render validates input against the input schema and substitutes it into the body.
func (c *Compiled) Render(input map[string]any) ([]Segment, error) {
	if err := c.in.Validate(input); err != nil {
		return nil, fmt.Errorf("template %s: invalid input: %w", c.Name, err)
	}
	v, _ := input[c.Input.Name].(string)
	return c.render(v)
}

// ValidateOutput checks a decoded JSON value against the output schema.
func (c *Compiled) ValidateOutput(v any) error {
	return c.out.Validate(v)
}

// ObjectSchema describes a single required string property as a JSON Schema object.
func ObjectSchema(f Field) map[string]any {
	prop := map[string]any{
		"type":        "string",
		"description": f.Description,
	}
	if f.Pattern != "" {
		prop["pattern"] = f.Pattern
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           map[string]any{f.Name: prop},
		"required":             []any{f.Name},
		"additionalProperties": false,
	}
}

func compileSchema(url string, data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}
