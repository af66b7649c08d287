package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/pdfquiz/internal/model"
)

// fakeModel returns a fixed response and records every request.
type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	requests []GenerateRequest
}

func (f *fakeModel) Generate(_ context.Context, req GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

const validQuizJSON = `{
  "quiz_title": "Water",
  "questions": [
    {"question_id": 1, "question": "Boiling point?", "options": [{"option_id": 1, "option": "90"}, {"option_id": 2, "option": "100"}], "correct_option_id": 2}
  ]
}`

func newTestGenerator(t *testing.T, mc ModelClient) *Generator {
	t.Helper()
	g, err := NewGenerator(mc)
	require.NoError(t, err)
	return g
}

func TestGeneratorSummarize(t *testing.T) {
	fm := &fakeModel{response: "- point"}
	g := newTestGenerator(t, fm)

	out, err := g.Summarize(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, "- point", out)

	require.Len(t, fm.requests, 1)
	req := fm.requests[0]
	assert.Equal(t, summarySystem, req.System)
	assert.Equal(t, FormatText, req.ResponseFormat)
	assert.Equal(t, 60, req.TopK)
	assert.Equal(t, "Generate detailed and precise summary in points without leaving any small detail from the given content: some text", req.Prompt)
}

func TestGeneratorSummarize_Failures(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"upstream error", &fakeModel{err: errors.New("quota")}},
		{"empty response", &fakeModel{response: "  \n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestGenerator(t, tt.model).Summarize(context.Background(), "x")
			var ge *model.GenerationError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, model.KindSummary, ge.Kind)
		})
	}
}

func TestGeneratorQuiz(t *testing.T) {
	fm := &fakeModel{response: validQuizJSON}
	g := newTestGenerator(t, fm)

	q, err := g.Quiz(context.Background(), "water facts", 5)
	require.NoError(t, err)
	assert.Equal(t, "Water", q.QuizTitle)
	require.Len(t, q.Questions, 1)
	assert.Equal(t, 2, q.Questions[0].CorrectOptionID)

	req := fm.requests[0]
	assert.Equal(t, quizSystem, req.System)
	assert.Equal(t, FormatJSON, req.ResponseFormat)
	assert.Equal(t, 20, req.TopK)
	assert.Contains(t, req.Prompt, "Create a quiz of 5 questions returning data in this JSON format:")
	assert.Contains(t, req.Prompt, `"correct_option_id": int`)
	assert.Contains(t, req.Prompt, "\n\nwater facts")
}

func TestGeneratorQuiz_SchemaViolation(t *testing.T) {
	noCorrect := `{"quiz_title":"T","questions":[{"question_id":1,"question":"Q?","options":[{"option_id":1,"option":"a"},{"option_id":2,"option":"b"}]}]}`
	g := newTestGenerator(t, &fakeModel{response: noCorrect})

	q, err := g.Quiz(context.Background(), "x", 1)
	assert.Nil(t, q)
	var ge *model.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, model.KindQuiz, ge.Kind)
}

func TestGeneratorQuiz_UpstreamError(t *testing.T) {
	g := newTestGenerator(t, &fakeModel{err: errors.New("timeout")})
	_, err := g.Quiz(context.Background(), "x", 1)
	var ge *model.GenerationError
	assert.ErrorAs(t, err, &ge)
}

func TestGenerator_WithStubModel(t *testing.T) {
	g := newTestGenerator(t, &StubModelClient{})

	q, err := g.Quiz(context.Background(), "text", 5)
	require.NoError(t, err)
	assert.Len(t, q.Questions, 5)

	s, err := g.Summarize(context.Background(), "text")
	require.NoError(t, err)
	assert.NotEmpty(t, s)
}
