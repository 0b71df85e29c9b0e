package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanskrit-reader/api/internal/config"
	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/prompt"
	"sanskrit-reader/api/internal/translate"
)

type echoEngine struct {
	last llm.Request
	err  error
}

func (e *echoEngine) Name() string     { return "gemini" }
func (e *echoEngine) GetModel() string { return "test" }
func (e *echoEngine) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	e.last = req
	if e.err != nil {
		return llm.Response{}, e.err
	}
	if req.Template == prompt.ImageTranslationName {
		return llm.Response{Output: map[string]any{prompt.TranslationField: "A verse"}}, nil
	}
	return llm.Response{Output: map[string]any{prompt.EnglishTranslationField: "That thou art"}}, nil
}

func withEngine(t *testing.T, eng *echoEngine) {
	t.Helper()
	prev := buildEngines
	buildEngines = func(*config.Config) (*llm.Engines, error) {
		return &llm.Engines{Gemini: eng, Default: "gemini"}, nil
	}
	t.Cleanup(func() { buildEngines = prev })

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("MODEL_TIMEOUT", "0s")
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	imagePath, llmName, configFile = "", "", ""

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestTranslate_Text(t *testing.T) {
	eng := &echoEngine{}
	withEngine(t, eng)

	out, _, err := execute(t, "", "translate", "तत्", "त्वम्", "असि")

	require.NoError(t, err)
	assert.Equal(t, "That thou art\n", out)
	assert.Equal(t, "तत् त्वम् असि", eng.last.Input[prompt.SanskritTextField])
}

func TestTranslate_Stdin(t *testing.T) {
	eng := &echoEngine{}
	withEngine(t, eng)

	out, _, err := execute(t, "अहं ब्रह्मास्मि\n", "translate", "-")

	require.NoError(t, err)
	assert.Equal(t, "That thou art\n", out)
	assert.Equal(t, "अहं ब्रह्मास्मि", eng.last.Input[prompt.SanskritTextField])
}

func TestTranslate_FailuresExitNonZero(t *testing.T) {
	withEngine(t, &echoEngine{})
	_, errOut, err := execute(t, "", "translate", "   ")
	assert.ErrorIs(t, err, errTranslationFailed)
	assert.Contains(t, errOut, translate.MsgEmptyText)

	withEngine(t, &echoEngine{err: errors.New("upstream 500: secret detail")})
	_, errOut, err = execute(t, "", "translate", "धर्म")
	assert.ErrorIs(t, err, errTranslationFailed)
	assert.Contains(t, errOut, translate.MsgTextFailed)
	assert.NotContains(t, errOut, "secret detail")
}

func TestTranslate_Image(t *testing.T) {
	eng := &echoEngine{}
	withEngine(t, eng)

	path := filepath.Join(t.TempDir(), "verse.png")
	data := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1, 2, 3}
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, _, err := execute(t, "", "translate", "--image", path)

	require.NoError(t, err)
	assert.Equal(t, "A verse\n", out)
	uri, _ := eng.last.Input[prompt.ImageURIField].(string)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"), uri)
}

func TestTranslate_ImageWrongType(t *testing.T) {
	withEngine(t, &echoEngine{})

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))

	_, errOut, err := execute(t, "", "translate", "--image", path)

	assert.ErrorIs(t, err, errTranslationFailed)
	assert.Contains(t, errOut, translate.MsgInvalidImageType)
}

func TestTranslate_UsageErrors(t *testing.T) {
	withEngine(t, &echoEngine{})

	_, _, err := execute(t, "", "translate")
	assert.Error(t, err)

	_, _, err = execute(t, "", "translate", "--llm", "deepseek", "धर्म")
	assert.ErrorIs(t, err, llm.ErrUnknownEngine)
}

func TestJournal_RequiresDatabase(t *testing.T) {
	withEngine(t, &echoEngine{})

	_, _, err := execute(t, "", "journal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal is disabled")
}
