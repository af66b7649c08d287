// Package config provides centralized configuration for the pdfquiz server.
// Values come from environment variables (optionally seeded from .env files)
// with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// UploadDir stores uploaded source PDFs.
	UploadDir string

	// ProcessedDir stores generated summary and quiz files.
	ProcessedDir string

	// MaxUploadBytes caps the multipart upload body.
	MaxUploadBytes int64

	// LLMProvider selects the generation backend: "gemini", "openai", "claude", "ollama" or "stub".
	LLMProvider string

	GeminiKey   string
	GeminiModel string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	AnthropicKey   string
	AnthropicModel string

	OllamaURL   string
	OllamaModel string

	// LLMMaxAttempts is the number of transport attempts per generation call.
	// 1 disables retries.
	LLMMaxAttempts int

	// HTTPTimeout bounds each outgoing request to an upstream API.
	HTTPTimeout time.Duration

	// Extractor selects the extraction backend: "llamaparse", "local" or "stub".
	Extractor string

	LlamaCloudKey     string
	LlamaCloudBaseURL string
	LlamaPollInterval time.Duration

	// RegistryBackend is "memory" or "sqlite".
	RegistryBackend string
	RegistryDBPath  string

	// WorkerConcurrency bounds concurrent extractions.
	WorkerConcurrency int

	QuizDefaultQuestions int
	QuizMaxQuestions     int

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	LogLevel  string
	LogFormat string
}

var defaults = map[string]any{
	"port":                     "5001",
	"upload_dir":               "uploads",
	"processed_dir":            "processed",
	"max_upload_mb":            16,
	"llm_provider":             "gemini",
	"gemini_model":             "gemini-2.5-flash",
	"openai_base_url":          "https://api.openai.com/v1",
	"openai_model":             "gpt-4o-mini",
	"anthropic_model":          "claude-sonnet-4-20250514",
	"ollama_url":               "http://localhost:11434",
	"ollama_model":             "llama3",
	"llm_max_attempts":         1,
	"http_timeout":             "300s",
	"extractor":                "",
	"llama_cloud_base_url":     "https://api.cloud.llamaindex.ai",
	"llamaparse_poll_interval": "2s",
	"registry_backend":         "memory",
	"registry_db_path":         ":memory:",
	"worker_concurrency":       4,
	"quiz_default_questions":   20,
	"quiz_max_questions":       100,
	"cors_origin":              "*",
	"log_level":                "info",
	"log_format":               "json",
}

// Load reads the configuration like Read and validates it.
func Load(envFiles ...string) (Config, error) {
	cfg, err := Read(envFiles...)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Read reads .env files (if present) and the environment, applying defaults.
// Variables already set in the process environment take precedence over
// values from the files. The result is not validated.
func Read(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env.local", ".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	cfg := Config{
		Port:                 v.GetString("port"),
		UploadDir:            v.GetString("upload_dir"),
		ProcessedDir:         v.GetString("processed_dir"),
		MaxUploadBytes:       v.GetInt64("max_upload_mb") * 1024 * 1024,
		LLMProvider:          strings.ToLower(v.GetString("llm_provider")),
		GeminiKey:            v.GetString("gemini_api_key"),
		GeminiModel:          v.GetString("gemini_model"),
		OpenAIKey:            v.GetString("openai_api_key"),
		OpenAIBaseURL:        v.GetString("openai_base_url"),
		OpenAIModel:          v.GetString("openai_model"),
		AnthropicKey:         v.GetString("anthropic_api_key"),
		AnthropicModel:       v.GetString("anthropic_model"),
		OllamaURL:            v.GetString("ollama_url"),
		OllamaModel:          v.GetString("ollama_model"),
		LLMMaxAttempts:       v.GetInt("llm_max_attempts"),
		HTTPTimeout:          v.GetDuration("http_timeout"),
		Extractor:            strings.ToLower(v.GetString("extractor")),
		LlamaCloudKey:        v.GetString("llama_cloud_api_key"),
		LlamaCloudBaseURL:    v.GetString("llama_cloud_base_url"),
		LlamaPollInterval:    v.GetDuration("llamaparse_poll_interval"),
		RegistryBackend:      strings.ToLower(v.GetString("registry_backend")),
		RegistryDBPath:       v.GetString("registry_db_path"),
		WorkerConcurrency:    v.GetInt("worker_concurrency"),
		QuizDefaultQuestions: v.GetInt("quiz_default_questions"),
		QuizMaxQuestions:     v.GetInt("quiz_max_questions"),
		CORSOrigin:           v.GetString("cors_origin"),
		LogLevel:             v.GetString("log_level"),
		LogFormat:            v.GetString("log_format"),
	}

	// Pick an extractor from the available credentials when not set explicitly.
	if cfg.Extractor == "" {
		if cfg.LlamaCloudKey != "" {
			cfg.Extractor = "llamaparse"
		} else {
			cfg.Extractor = "local"
		}
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiKey == "" {
			return errors.New("GEMINI_API_KEY is required for LLM_PROVIDER=gemini")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return errors.New("OPENAI_API_KEY is required for LLM_PROVIDER=openai")
		}
	case "claude":
		if c.AnthropicKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required for LLM_PROVIDER=claude")
		}
	case "ollama", "stub":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if err := c.ValidateExtractor(); err != nil {
		return err
	}

	switch c.RegistryBackend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown REGISTRY_BACKEND %q", c.RegistryBackend)
	}

	if c.QuizDefaultQuestions < 1 || c.QuizDefaultQuestions > c.QuizMaxQuestions {
		return fmt.Errorf("QUIZ_DEFAULT_QUESTIONS must be between 1 and %d", c.QuizMaxQuestions)
	}
	if c.WorkerConcurrency < 1 {
		return errors.New("WORKER_CONCURRENCY must be at least 1")
	}
	return nil
}

// ValidateExtractor checks only the extraction backend settings.
func (c Config) ValidateExtractor() error {
	switch c.Extractor {
	case "llamaparse":
		if c.LlamaCloudKey == "" {
			return errors.New("LLAMA_CLOUD_API_KEY is required for EXTRACTOR=llamaparse")
		}
	case "local", "stub":
	default:
		return fmt.Errorf("unknown EXTRACTOR %q", c.Extractor)
	}
	return nil
}

// UseStubs returns true when the stub generation backend is selected.
func (c Config) UseStubs() bool {
	return c.LLMProvider == "stub"
}
