package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/yangwenmai/pdfquiz/internal/files"
	"github.com/yangwenmai/pdfquiz/internal/model"
	"github.com/yangwenmai/pdfquiz/internal/worker"
)

// ---------------------------------------------------------------------------
// Step 1: Extract
// ---------------------------------------------------------------------------

func (p *Pipeline) runExtract(ctx context.Context, filename string, body io.Reader) (*model.Artifact, error) {
	id := uuid.New().String()

	path, err := p.files.SaveUpload(id, filename, body)
	if err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			return nil, model.InvalidInput("file too large")
		}
		return nil, &StepError{Step: "save", Err: err}
	}

	text, err := worker.Do(ctx, p.pool, "extract", func(ctx context.Context) (string, error) {
		return p.extractor.Extract(ctx, path)
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("no text extracted")
	}
	if err != nil {
		p.log.Error().Err(err).Str("file_id", id).Str("step", "extract").Msg("pdf extraction failed")
		return nil, &StepError{Step: "extract", Err: &model.ExtractionError{Err: err}}
	}

	a := model.NewArtifact(id, filename, path, text)
	if err := p.registry.Put(ctx, a); err != nil {
		return nil, &StepError{Step: "register", Err: err}
	}
	return &a, nil
}

// ---------------------------------------------------------------------------
// Step 2: Summarize
// ---------------------------------------------------------------------------

func (p *Pipeline) runSummarize(ctx context.Context, id string) (*SummaryResult, error) {
	// Re-read inside the flight: a previous flight may have finished
	// between the caller's check and this one starting.
	a, err := p.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	filename := model.SummaryFilename(id)
	if a.HasSummary() {
		return &SummaryResult{FileID: id, Summary: a.Summary, SummaryFile: filename, AlreadyExisted: true}, nil
	}

	summary, err := p.gen.Summarize(ctx, a.ExtractedText)
	if err != nil {
		p.log.Error().Err(err).Str("file_id", id).Str("step", "summarize").Msg("summary generation failed")
		return nil, &StepError{Step: "summarize", Err: err}
	}

	if err := p.files.WriteGenerated(filename, []byte(summary)); err != nil {
		return nil, &StepError{Step: "write_summary", Err: err}
	}
	stored, err := p.registry.SetSummary(ctx, id, summary)
	if err != nil {
		return nil, &StepError{Step: "store_summary", Err: err}
	}
	p.log.Info().Str("file_id", id).Int("summary_length", len(stored)).Msg("summary generated")
	return &SummaryResult{FileID: id, Summary: stored, SummaryFile: filename}, nil
}

// ---------------------------------------------------------------------------
// Step 3: Quiz
// ---------------------------------------------------------------------------

func (p *Pipeline) runQuiz(ctx context.Context, id string, numQuestions int) (*QuizResult, error) {
	a, err := p.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	filename := model.QuizFilename(id)
	if a.HasQuiz() {
		return &QuizResult{FileID: id, QuizFile: filename, Quiz: a.Quiz, AlreadyExisted: true}, nil
	}

	quiz, err := p.gen.Quiz(ctx, a.ExtractedText, numQuestions)
	if err != nil {
		p.log.Error().Err(err).Str("file_id", id).Str("step", "quiz").Int("num_questions", numQuestions).Msg("quiz generation failed")
		return nil, &StepError{Step: "quiz", Err: err}
	}

	payload, err := encodeQuiz(quiz)
	if err != nil {
		return nil, &StepError{Step: "write_quiz", Err: err}
	}
	if err := p.files.WriteGenerated(filename, payload); err != nil {
		return nil, &StepError{Step: "write_quiz", Err: err}
	}
	stored, err := p.registry.SetQuiz(ctx, id, quiz)
	if err != nil {
		return nil, &StepError{Step: "store_quiz", Err: err}
	}
	p.log.Info().Str("file_id", id).Int("questions", len(stored.Questions)).Msg("quiz generated")
	return &QuizResult{FileID: id, QuizFile: filename, Quiz: stored}, nil
}

// encodeQuiz renders the quiz as indented JSON without HTML escaping.
func encodeQuiz(q *model.Quiz) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(q); err != nil {
		return nil, fmt.Errorf("encode quiz: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
