package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sanskrit-reader/api/internal/translate"
	"sanskrit-reader/api/internal/util"
)

var (
	imagePath string
	llmName   string
)

var errTranslationFailed = errors.New("translation failed")

var translateCmd = &cobra.Command{
	Use:   "translate [text...]",
	Short: "Translate Sanskrit text or an image once and print the result",
	Long: `Translate Sanskrit text given as arguments (or on stdin with "-"),
or an image file with --image.

Examples:
  sanskrit-reader translate "तत् त्वम् असि"
  sanskrit-reader translate --image verse.png --llm gpt
  echo "अहं ब्रह्मास्मि" | sanskrit-reader translate -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if imagePath == "" && len(args) == 0 {
			return errors.New("nothing to translate: pass text or --image")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		if cfg.ModelTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.ModelTimeout)
			defer cancel()
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.service(llmName)
		if err != nil {
			return err
		}

		var res translate.Result
		if imagePath != "" {
			img, err := readImage(imagePath)
			if err != nil {
				return err
			}
			res = svc.TranslateImage(ctx, img)
		} else {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			res = svc.TranslateText(ctx, text)
		}

		if !res.Success {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Error)
			return errTranslationFailed
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Translation)
		return nil
	},
}

func init() {
	translateCmd.Flags().StringVar(&imagePath, "image", "", "image file to translate instead of text")
	translateCmd.Flags().StringVar(&llmName, "llm", "", "engine: gemini | gpt (default LLM_DEFAULT)")
	rootCmd.AddCommand(translateCmd)
}

func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(cmd.InOrStdin()); err != nil {
			return "", err
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	}
	return strings.Join(args, " "), nil
}

// readImage declares the type from the extension, falling back to content sniffing.
func readImage(path string) (*translate.ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return &translate.ImageFile{
		Filename:    filepath.Base(path),
		ContentType: util.PickMIME(ct, "", data),
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}, nil
}
