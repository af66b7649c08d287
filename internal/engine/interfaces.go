package engine

import "context"

// Response formats a ModelClient can be asked to produce.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// GenerateRequest is a single-turn generation call. Every request is a
// fresh conversation; no history is carried between calls.
type GenerateRequest struct {
	System          string
	Prompt          string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	// ResponseFormat is FormatText or FormatJSON.
	ResponseFormat string
}

// ModelClient abstracts LLM calls. Implementations wrap Gemini, OpenAI, Claude, Ollama, etc.
type ModelClient interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// DocumentExtractor converts a stored source document into plain text.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}
