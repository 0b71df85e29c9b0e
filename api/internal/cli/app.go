package cli

import (
	"context"
	"database/sql"
	"fmt"

	"sanskrit-reader/api/internal/config"
	"sanskrit-reader/api/internal/handle"
	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/llm/gemini"
	"sanskrit-reader/api/internal/llm/openai"
	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/prompt"
	"sanskrit-reader/api/internal/store"
	"sanskrit-reader/api/internal/translate"
)

// app holds the process-wide objects every front-end shares.
type app struct {
	cfg     *config.Config
	engines *llm.Engines

	db      *sql.DB
	repo    *store.JournalRepo
	journal translate.Journal // nil when the journal is off
}

// buildEngines is swapped in tests.
var buildEngines = func(cfg *config.Config) (*llm.Engines, error) {
	prompts, err := prompt.NewStore(prompt.TextTranslation, prompt.ImageTranslation)
	if err != nil {
		return nil, err
	}
	engs := &llm.Engines{Default: cfg.LLMDefault}
	if cfg.GeminiAPIKey != "" {
		engs.Gemini = gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, prompts)
	}
	if cfg.OpenAIAPIKey != "" {
		engs.OpenAI = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, prompts)
	}
	if _, err := engs.GetEngine(""); err != nil {
		return nil, err
	}
	return engs, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	engs, err := buildEngines(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, engines: engs}

	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		repo := store.NewJournalRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal schema: %w", err)
		}
		a.db, a.repo, a.journal = db, repo, repo
		logger.Infof("journal enabled: %s", store.SafeDSNSummary(cfg.DatabaseURL))
	}

	def, _ := engs.GetEngine("")
	logger.Infof("engines: %v default=%s (%s)", engs.Names(), def.Name(), def.GetModel())
	return a, nil
}

func (a *app) handle() *handle.Handle {
	opts := []handle.Option{
		handle.WithModelTimeout(a.cfg.ModelTimeout),
		handle.WithMaxImageBytes(a.cfg.MaxImageBytes),
	}
	if a.journal != nil {
		opts = append(opts, handle.WithJournal(a.journal))
	}
	return handle.New(a.engines, opts...)
}

func (a *app) service(llmName string) (*translate.Service, error) {
	eng, err := a.engines.GetEngine(llmName)
	if err != nil {
		return nil, err
	}
	opts := []translate.Option{translate.WithMaxImageBytes(a.cfg.MaxImageBytes)}
	if a.journal != nil {
		opts = append(opts, translate.WithJournal(a.journal))
	}
	return translate.New(eng, opts...), nil
}

// health backs /healthz; without a journal there is nothing to probe.
func (a *app) health() func(context.Context) error {
	if a.repo == nil {
		return nil
	}
	return a.repo.Ping
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
