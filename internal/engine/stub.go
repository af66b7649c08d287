package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yangwenmai/pdfquiz/internal/model"
)

// StubExtractor returns fixed text (for development/testing).
type StubExtractor struct{}

func (e *StubExtractor) Extract(_ context.Context, path string) (string, error) {
	return "This is stub extracted text for " + path + ". It covers photosynthesis, the water cycle, and plate tectonics.", nil
}

// StubModelClient returns canned summaries and well-formed quizzes (for development/testing).
type StubModelClient struct{}

func (m *StubModelClient) Generate(_ context.Context, req GenerateRequest) (string, error) {
	if req.ResponseFormat != FormatJSON {
		return "- The content introduces its main topic.\n- Key facts are listed in order.\n- The closing section restates the conclusions.", nil
	}

	var n int
	if _, err := fmt.Sscanf(req.Prompt, "Create a quiz of %d questions", &n); err != nil || n < 1 {
		n = 1
	}
	quiz := model.Quiz{QuizTitle: "Stub Quiz"}
	for i := 1; i <= n; i++ {
		quiz.Questions = append(quiz.Questions, model.Question{
			QuestionID: i,
			Question:   fmt.Sprintf("Stub question %d?", i),
			Options: []model.Option{
				{OptionID: 1, Option: "Option A"},
				{OptionID: 2, Option: "Option B"},
				{OptionID: 3, Option: "Option C"},
				{OptionID: 4, Option: "Option D"},
			},
			CorrectOptionID: 1 + (i-1)%4,
		})
	}
	b, err := json.MarshalIndent(quiz, "", "  ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
