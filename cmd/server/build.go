package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/yangwenmai/pdfquiz/internal/config"
	"github.com/yangwenmai/pdfquiz/internal/engine"
	"github.com/yangwenmai/pdfquiz/internal/files"
	"github.com/yangwenmai/pdfquiz/internal/store"
	"github.com/yangwenmai/pdfquiz/internal/worker"
)

// app holds the wired service and the resources it owns.
type app struct {
	pipeline *engine.Pipeline
	db       *sql.DB
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func build(cfg config.Config, log zerolog.Logger) (*app, error) {
	fstore, err := files.New(afero.NewOsFs(), cfg.UploadDir, cfg.ProcessedDir, cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	a := &app{}
	var registry store.Registry
	switch cfg.RegistryBackend {
	case "sqlite":
		db, err := store.OpenSQLite(cfg.RegistryDBPath)
		if err != nil {
			return nil, fmt.Errorf("open registry db: %w", err)
		}
		s, err := store.NewSQLite(db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init registry: %w", err)
		}
		a.db = db
		registry = s
	default:
		registry = store.NewMemory()
	}

	gen, err := engine.NewGenerator(buildModelClient(cfg, log))
	if err != nil {
		a.Close()
		return nil, err
	}

	pool := worker.New(cfg.WorkerConcurrency, log)
	log.Info().Int("workers", pool.Size()).Msg("extraction pool ready")

	a.pipeline = engine.NewPipeline(
		registry,
		fstore,
		buildExtractor(cfg, fstore.Fs(), log),
		gen,
		pool,
		engine.WithQuestionLimits(cfg.QuizDefaultQuestions, cfg.QuizMaxQuestions),
		engine.WithLogger(log.With().Str("component", "pipeline").Logger()),
	)
	return a, nil
}

func buildModelClient(cfg config.Config, log zerolog.Logger) engine.ModelClient {
	if cfg.UseStubs() {
		log.Warn().Msg("using stub model client")
		return &engine.StubModelClient{}
	}
	common := []engine.Option{
		engine.WithTimeout(cfg.HTTPTimeout),
		engine.WithMaxAttempts(cfg.LLMMaxAttempts),
	}
	switch cfg.LLMProvider {
	case "openai":
		log.Info().Str("model", cfg.OpenAIModel).Str("base_url", cfg.OpenAIBaseURL).Msg("using OpenAI model client")
		return engine.NewOpenAIClient(cfg.OpenAIKey, append(common,
			engine.WithModel(cfg.OpenAIModel), engine.WithBaseURL(cfg.OpenAIBaseURL))...)
	case "claude":
		log.Info().Str("model", cfg.AnthropicModel).Msg("using Claude model client")
		return engine.NewClaudeClient(cfg.AnthropicKey, append(common, engine.WithModel(cfg.AnthropicModel))...)
	case "ollama":
		log.Info().Str("model", cfg.OllamaModel).Str("url", cfg.OllamaURL).Msg("using Ollama model client")
		return engine.NewOllamaClient(cfg.OllamaURL, append(common, engine.WithModel(cfg.OllamaModel))...)
	default:
		log.Info().Str("model", cfg.GeminiModel).Msg("using Gemini model client")
		return engine.NewGeminiClient(cfg.GeminiKey, append(common, engine.WithModel(cfg.GeminiModel))...)
	}
}

func buildExtractor(cfg config.Config, fs afero.Fs, log zerolog.Logger) engine.DocumentExtractor {
	switch cfg.Extractor {
	case "llamaparse":
		log.Info().Str("base_url", cfg.LlamaCloudBaseURL).Msg("using LlamaParse extractor")
		return engine.NewLlamaParseExtractor(fs, cfg.LlamaCloudKey,
			engine.WithLlamaBaseURL(cfg.LlamaCloudBaseURL),
			engine.WithPollInterval(cfg.LlamaPollInterval),
			engine.WithLlamaTimeout(cfg.HTTPTimeout),
		)
	case "stub":
		log.Warn().Msg("using stub extractor")
		return &engine.StubExtractor{}
	default:
		log.Info().Msg("using local MuPDF extractor")
		return engine.NewFitzExtractor(fs)
	}
}
