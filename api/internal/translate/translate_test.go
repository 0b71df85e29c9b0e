package translate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/prompt"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Name() string     { return "mock" }
func (m *MockClient) GetModel() string { return "mock-1" }
func (m *MockClient) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.Response), args.Error(1)
}

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) Record(ctx context.Context, e Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func textReq(text string) llm.Request {
	return llm.Request{
		Template: prompt.TextTranslationName,
		Input:    map[string]any{prompt.SanskritTextField: text},
	}
}

func TestTranslateText_EmptyOrBlankNeverCallsModel(t *testing.T) {
	for _, in := range []string{"", " ", "\t\n", "  \r\n"} {
		m := new(MockClient)
		res := New(m).TranslateText(context.Background(), in)

		assert.False(t, res.Success, "input %q", in)
		assert.Equal(t, MsgEmptyText, res.Error)
		assert.Equal(t, KindValidation, res.Kind)
		m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	}
}

func TestTranslateText_ForwardsExactTextAndReturnsOutputUnchanged(t *testing.T) {
	in := "  तत् त्वम् असि\n"
	m := new(MockClient)
	m.On("Generate", mock.Anything, textReq(in)).
		Return(llm.Response{Output: map[string]any{prompt.EnglishTranslationField: "  That thou art\n"}}, nil).Once()

	res := New(m).TranslateText(context.Background(), in)

	assert.Equal(t, Result{Success: true, Translation: "  That thou art\n"}, res)
	m.AssertExpectations(t)
}

func TestTranslateText_EndToEndScenario(t *testing.T) {
	m := new(MockClient)
	m.On("Generate", mock.Anything, textReq("तत् त्वम् असि")).
		Return(llm.Response{Output: map[string]any{"englishTranslation": "That thou art"}}, nil)

	res := New(m).TranslateText(context.Background(), "तत् त्वम् असि")

	assert.True(t, res.Success)
	assert.Equal(t, "That thou art", res.Translation)
	assert.Empty(t, res.Error)
}

func TestTranslateText_InvocationErrorIsGeneric(t *testing.T) {
	for _, cause := range []error{
		errors.New("googleapi: Error 500: secret internal detail"),
		llm.ErrNoOutput,
		llm.ErrBadOutput,
	} {
		m := new(MockClient)
		m.On("Generate", mock.Anything, mock.Anything).Return(llm.Response{}, cause)

		res := New(m).TranslateText(context.Background(), "धर्म")

		assert.False(t, res.Success)
		assert.Equal(t, MsgTextFailed, res.Error)
		assert.Equal(t, KindInvocation, res.Kind)
		assert.NotContains(t, res.Error, "secret")
	}
}

func TestTranslateImage_MissingOrEmpty(t *testing.T) {
	m := new(MockClient)
	s := New(m)

	assert.Equal(t, MsgNoImage, s.TranslateImage(context.Background(), nil).Error)
	assert.Equal(t, MsgNoImage, s.TranslateImage(context.Background(), &ImageFile{
		ContentType: "image/png", Size: 0, Body: bytes.NewReader(nil),
	}).Error)
	assert.Equal(t, MsgNoImage, s.TranslateImage(context.Background(), &ImageFile{
		ContentType: "image/png", Size: -1, Body: bytes.NewReader(nil),
	}).Error)
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestTranslateImage_WrongType(t *testing.T) {
	m := new(MockClient)
	res := New(m).TranslateImage(context.Background(), &ImageFile{
		Filename: "notes.txt", ContentType: "text/plain", Size: 5, Body: strings.NewReader("hello"),
	})

	assert.False(t, res.Success)
	assert.Equal(t, MsgInvalidImageType, res.Error)
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestTranslateImage_BuildsExactDataURI(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n', 0x00, 0xFF, 0x10}
	var sent string
	m := new(MockClient)
	m.On("Generate", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return r.Template == prompt.ImageTranslationName
	})).Run(func(args mock.Arguments) {
		sent = args.Get(1).(llm.Request).Input[prompt.ImageURIField].(string)
	}).Return(llm.Response{Output: map[string]any{prompt.TranslationField: "Hail to Ganesha"}}, nil)

	res := New(m).TranslateImage(context.Background(), &ImageFile{
		Filename: "verse.png", ContentType: "image/png", Size: int64(len(png)), Body: bytes.NewReader(png),
	})

	require.True(t, res.Success)
	assert.Equal(t, "Hail to Ganesha", res.Translation)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(sent, prefix))
	assert.Equal(t, prefix+base64.StdEncoding.EncodeToString(png), sent)
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sent, prefix))
	require.NoError(t, err)
	assert.Equal(t, png, decoded)
}

func TestTranslateImage_InvocationErrorIsGeneric(t *testing.T) {
	m := new(MockClient)
	m.On("Generate", mock.Anything, mock.Anything).Return(llm.Response{}, errors.New("request entity too large: 21MB"))

	res := New(m).TranslateImage(context.Background(), &ImageFile{
		ContentType: "image/jpeg", Size: 2, Body: bytes.NewReader([]byte{0xFF, 0xD8}),
	})

	assert.False(t, res.Success)
	assert.Equal(t, MsgImageFailed, res.Error)
	assert.NotContains(t, res.Error, "21MB")
}

func TestTranslateImage_ReadErrorIsGeneric(t *testing.T) {
	m := new(MockClient)
	res := New(m).TranslateImage(context.Background(), &ImageFile{
		ContentType: "image/jpeg", Size: 10, Body: iotest.ErrReader(errors.New("connection reset")),
	})

	assert.Equal(t, MsgImageFailed, res.Error)
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestTranslateImage_MaxBytes(t *testing.T) {
	m := new(MockClient)
	s := New(m, WithMaxImageBytes(4))

	res := s.TranslateImage(context.Background(), &ImageFile{
		ContentType: "image/png", Size: -1, Body: bytes.NewReader(make([]byte, 5)),
	})
	assert.Equal(t, MsgImageFailed, res.Error)
	m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	m.On("Generate", mock.Anything, mock.Anything).
		Return(llm.Response{Output: map[string]any{prompt.TranslationField: "ok"}}, nil)
	res = s.TranslateImage(context.Background(), &ImageFile{
		ContentType: "image/png", Size: 4, Body: bytes.NewReader(make([]byte, 4)),
	})
	assert.True(t, res.Success)
}

func TestJournal_RecordsOutcomeWithoutInput(t *testing.T) {
	m := new(MockClient)
	m.On("Generate", mock.Anything, mock.Anything).
		Return(llm.Response{Output: map[string]any{prompt.EnglishTranslationField: "That thou art"}}, nil)

	var got Entry
	j := new(MockJournal)
	j.On("Record", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(Entry)
	}).Return(nil)

	res := New(m, WithJournal(j)).TranslateText(context.Background(), "तत् त्वम् असि")
	require.True(t, res.Success)

	j.AssertNumberOfCalls(t, "Record", 1)
	assert.Equal(t, "text", got.Kind)
	assert.Equal(t, "mock", got.Engine)
	assert.Equal(t, "mock-1", got.Model)
	assert.True(t, got.Success)
	assert.Len(t, got.InputHash, 64)
	assert.NotContains(t, got.InputHash, "तत्")
}

func TestJournal_FailureDoesNotChangeResult(t *testing.T) {
	m := new(MockClient)
	j := new(MockJournal)
	j.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down"))

	res := New(m, WithJournal(j)).TranslateText(context.Background(), "")
	assert.Equal(t, MsgEmptyText, res.Error)
	j.AssertExpectations(t)
}

func TestResult_JSONShape(t *testing.T) {
	b, err := json.Marshal(ok(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"translation":""}`, string(b))

	b, err = json.Marshal(ok("That thou art"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"translation":"That thou art"}`, string(b))

	b, err = json.Marshal(fail(KindValidation, MsgEmptyText))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"`+MsgEmptyText+`"}`, string(b))
}
