package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/yangwenmai/pdfquiz/internal/model"
)

// Generator turns extracted text into a summary or a quiz using a ModelClient.
type Generator struct {
	model     ModelClient
	validator *QuizValidator
}

// NewGenerator creates a Generator backed by mc.
func NewGenerator(mc ModelClient) (*Generator, error) {
	v, err := NewQuizValidator()
	if err != nil {
		return nil, err
	}
	return &Generator{model: mc, validator: v}, nil
}

// Summarize produces a point-wise summary of text. Failures, including an
// empty response, are returned as *model.GenerationError.
func (g *Generator) Summarize(ctx context.Context, text string) (string, error) {
	req := summaryParams
	req.Prompt = buildSummaryPrompt(text)

	out, err := g.model.Generate(ctx, req)
	if err != nil {
		return "", &model.GenerationError{Kind: model.KindSummary, Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &model.GenerationError{Kind: model.KindSummary, Err: errors.New("empty response")}
	}
	return out, nil
}

// Quiz produces a quiz of numQuestions questions. The response must match
// the quiz schema; otherwise a *model.GenerationError is returned.
func (g *Generator) Quiz(ctx context.Context, text string, numQuestions int) (*model.Quiz, error) {
	req := quizParams
	req.Prompt = buildQuizPrompt(text, numQuestions)

	out, err := g.model.Generate(ctx, req)
	if err != nil {
		return nil, &model.GenerationError{Kind: model.KindQuiz, Err: err}
	}
	q, err := g.validator.Parse(out)
	if err != nil {
		return nil, &model.GenerationError{Kind: model.KindQuiz, Err: err}
	}
	return q, nil
}
