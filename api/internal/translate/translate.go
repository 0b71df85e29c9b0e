// Package translate validates user input and dispatches it to a model client.
// Both entry points always return a Result; errors never escape to callers.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/prompt"
	"sanskrit-reader/api/internal/util"
)

const (
	MsgEmptyText        = "Sanskrit text cannot be empty."
	MsgTextFailed       = "An unexpected error occurred during translation."
	MsgNoImage          = "No image file provided."
	MsgInvalidImageType = "Invalid file type. Please upload an image."
	MsgImageFailed      = "Failed to translate image. The image may be too large or in an unsupported format."
)

type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	KindInvocation Kind = "invocation"
)

// Result is the tagged outcome shown to users.
type Result struct {
	Success     bool   `json:"success"`
	Translation string `json:"translation"`
	Error       string `json:"error"`
	Kind        Kind   `json:"-"`
}

// MarshalJSON writes {success, translation} on success and {success, error} otherwise.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			Success     bool   `json:"success"`
			Translation string `json:"translation"`
		}{true, r.Translation})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{false, r.Error})
}

func ok(translation string) Result { return Result{Success: true, Translation: translation} }

func fail(kind Kind, msg string) Result { return Result{Error: msg, Kind: kind} }

// ImageFile is an uploaded image. A nil *ImageFile means nothing was uploaded.
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64 // declared size; negative when unknown
	Body        io.Reader
}

// Entry is what a Journal learns about one request. It never holds the input itself.
type Entry struct {
	Kind      string // "text" | "image"
	Engine    string
	Model     string
	InputHash string
	Success   bool
	ErrorKind Kind
	Latency   time.Duration
}

type Journal interface {
	Record(ctx context.Context, e Entry) error
}

type Service struct {
	client        llm.Client
	maxImageBytes int64
	journal       Journal
	now           func() time.Time
}

type Option func(*Service)

// WithMaxImageBytes rejects larger payloads before any model call. 0 disables the cap.
func WithMaxImageBytes(n int64) Option {
	return func(s *Service) { s.maxImageBytes = n }
}

func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

func New(client llm.Client, opts ...Option) *Service {
	s := &Service{client: client, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TranslateText sends text verbatim to the text translation template.
func (s *Service) TranslateText(ctx context.Context, text string) Result {
	start := s.now()
	if strings.TrimSpace(text) == "" {
		res := fail(KindValidation, MsgEmptyText)
		s.record(ctx, "text", nil, start, res)
		return res
	}

	out, err := s.client.Generate(ctx, llm.Request{
		Template: prompt.TextTranslationName,
		Input:    map[string]any{prompt.SanskritTextField: text},
	})
	var res Result
	if err != nil {
		logger.Errorf("text translation error: engine=%s model=%s: %v", s.client.Name(), s.client.GetModel(), err)
		res = fail(KindInvocation, MsgTextFailed)
	} else {
		res = ok(out.Field(prompt.EnglishTranslationField))
	}
	s.record(ctx, "text", []byte(text), start, res)
	return res
}

// TranslateImage encodes the upload as a data URI and sends it to the image template.
func (s *Service) TranslateImage(ctx context.Context, f *ImageFile) Result {
	start := s.now()
	res, data := s.translateImage(ctx, f)
	s.record(ctx, "image", data, start, res)
	return res
}

func (s *Service) translateImage(ctx context.Context, f *ImageFile) (Result, []byte) {
	if f == nil || f.Body == nil || f.Size == 0 {
		return fail(KindValidation, MsgNoImage), nil
	}
	if !util.IsImageMIME(f.ContentType) {
		return fail(KindValidation, MsgInvalidImageType), nil
	}

	data, err := s.readAll(f.Body)
	if err != nil {
		logger.Errorf("image translation error: read %q: %v", f.Filename, err)
		return fail(KindValidation, MsgImageFailed), nil
	}
	if len(data) == 0 {
		return fail(KindValidation, MsgNoImage), nil
	}

	out, err := s.client.Generate(ctx, llm.Request{
		Template: prompt.ImageTranslationName,
		Input:    map[string]any{prompt.ImageURIField: util.MakeDataURL(f.ContentType, data)},
	})
	if err != nil {
		logger.Errorf("image translation error: engine=%s model=%s file=%q bytes=%d: %v",
			s.client.Name(), s.client.GetModel(), f.Filename, len(data), err)
		return fail(KindInvocation, MsgImageFailed), data
	}
	return ok(out.Field(prompt.TranslationField)), data
}

func (s *Service) readAll(r io.Reader) ([]byte, error) {
	if s.maxImageBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxImageBytes {
		return nil, errImageTooLarge{limit: s.maxImageBytes}
	}
	return data, nil
}

type errImageTooLarge struct{ limit int64 }

func (e errImageTooLarge) Error() string {
	return fmt.Sprintf("image exceeds %d bytes", e.limit)
}

func (s *Service) record(ctx context.Context, kind string, input []byte, start time.Time, res Result) {
	if s.journal == nil {
		return
	}
	e := Entry{
		Kind:      kind,
		Engine:    s.client.Name(),
		Model:     s.client.GetModel(),
		Success:   res.Success,
		ErrorKind: res.Kind,
		Latency:   s.now().Sub(start),
	}
	if len(input) > 0 {
		e.InputHash = util.SHA256Hex(input)
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.journal.Record(jctx, e); err != nil {
		logger.Warnf("journal record failed: %v", err)
	}
}
