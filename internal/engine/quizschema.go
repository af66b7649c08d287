package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/yangwenmai/pdfquiz/internal/model"
)

const quizSchemaURL = "quiz.schema.json"

const quizSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["quiz_title", "questions"],
  "properties": {
    "quiz_title": {"type": "string"},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["question_id", "question", "options", "correct_option_id"],
        "properties": {
          "question_id": {"type": "integer"},
          "question": {"type": "string", "minLength": 1},
          "options": {
            "type": "array",
            "minItems": 2,
            "items": {
              "type": "object",
              "required": ["option_id", "option"],
              "properties": {
                "option_id": {"type": "integer"},
                "option": {"type": "string"}
              }
            }
          },
          "correct_option_id": {"type": "integer"}
        }
      }
    }
  }
}`

// QuizValidator checks raw model output against the quiz schema.
type QuizValidator struct {
	schema *jsonschema.Schema
}

// NewQuizValidator compiles the quiz schema.
func NewQuizValidator() (*QuizValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(quizSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse quiz schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(quizSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add quiz schema: %w", err)
	}
	sch, err := c.Compile(quizSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile quiz schema: %w", err)
	}
	return &QuizValidator{schema: sch}, nil
}

// Parse validates raw and decodes it into a Quiz. A surrounding markdown
// code fence is tolerated; anything else that does not match the schema
// is rejected whole.
func (v *QuizValidator) Parse(raw string) (*model.Quiz, error) {
	payload := []byte(stripCodeFence(raw))

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("quiz is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("quiz does not match schema: %w", err)
	}

	var q model.Quiz
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	if err := checkQuestions(q.Questions); err != nil {
		return nil, err
	}
	return &q, nil
}

// checkQuestions enforces what the schema cannot express: option ids are
// unique within a question and the correct id names one of them.
func checkQuestions(questions []model.Question) error {
	for _, q := range questions {
		seen := make(map[int]bool, len(q.Options))
		for _, o := range q.Options {
			if seen[o.OptionID] {
				return fmt.Errorf("question %d: duplicate option_id %d", q.QuestionID, o.OptionID)
			}
			seen[o.OptionID] = true
		}
		if !q.HasOption(q.CorrectOptionID) {
			return fmt.Errorf("question %d: correct_option_id %d is not an option", q.QuestionID, q.CorrectOptionID)
		}
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
