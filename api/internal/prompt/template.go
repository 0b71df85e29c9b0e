package prompt

import (
	"errors"
	"fmt"
	"strings"
)

const (
	TextTranslationName  = "translateSanskritTextPrompt"
	ImageTranslationName = "translateSanskritImagePrompt"

	SanskritTextField       = "sanskritText"
	EnglishTranslationField = "englishTranslation"
	ImageURIField           = "imageUri"
	TranslationField        = "translation"
)

var ErrUnknownTemplate = errors.New("unknown prompt template")

// Field is one string property of a template's input or output record.
type Field struct {
	Name        string
	Description string
	Pattern     string // optional regexp the value must match
}

// Template is a fixed instruction with exactly one substitution point.
// When Media is set the substitution point carries a data URI that engines
// send as inline image data instead of text.
type Template struct {
	Name   string
	Body   string
	Input  Field
	Output Field
	Media  bool
}

// Segment is one ordered piece of a rendered prompt: either text or a media URL.
type Segment struct {
	Text     string
	MediaURL string
}

func (s Segment) IsMedia() bool { return s.MediaURL != "" }

var TextTranslation = Template{
	Name: TextTranslationName,
	Body: "Translate the following Sanskrit text into English, intelligently incorporating known Sanskrit root meanings:\n\n{{" + SanskritTextField + "}}",
	Input: Field{
		Name:        SanskritTextField,
		Description: "The Sanskrit text to translate.",
	},
	Output: Field{
		Name:        EnglishTranslationField,
		Description: "The English translation of the Sanskrit text.",
	},
}

var ImageTranslation = Template{
	Name: ImageTranslationName,
	Body: `You are an expert Sanskrit translator. You will be provided with an image containing Sanskrit text.
Your task is to translate the text in the image into English.
Use all your knowledge of Sanskrit, including root meanings, to provide the most accurate translation possible.

Image: {{media url=` + ImageURIField + `}}

Translation:`,
	Input: Field{
		Name:        ImageURIField,
		Description: "An image containing Sanskrit text, as a data URI that must include a MIME type and use Base64 encoding. Expected format: 'data:<mimetype>;base64,<encoded_data>'.",
		Pattern:     `^data:[^;,]+;base64,`,
	},
	Output: Field{
		Name:        TranslationField,
		Description: "The English translation of the Sanskrit text in the image.",
	},
	Media: true,
}

func (t Template) placeholder() string {
	if t.Media {
		return "{{media url=" + t.Input.Name + "}}"
	}
	return "{{" + t.Input.Name + "}}"
}

// FormatInstruction tells the model the shape of the single-field reply.
func (t Template) FormatInstruction() string {
	return fmt.Sprintf("Return only a JSON object of the form {%q: string}. %s: %s",
		t.Output.Name, t.Output.Name, t.Output.Description)
}

// render substitutes value at the placeholder. Empty text segments are dropped.
func (t Template) render(value string) ([]Segment, error) {
	before, after, ok := strings.Cut(t.Body, t.placeholder())
	if !ok {
		return nil, fmt.Errorf("template %s: placeholder %s missing", t.Name, t.placeholder())
	}
	if !t.Media {
		return []Segment{{Text: before + value + after}}, nil
	}
	segs := make([]Segment, 0, 3)
	if before != "" {
		segs = append(segs, Segment{Text: before})
	}
	segs = append(segs, Segment{MediaURL: value})
	if after != "" {
		segs = append(segs, Segment{Text: after})
	}
	return segs, nil
}
