package engine

import "fmt"

const (
	summarySystem = "You are a helpful assistant which helps teachers generate summary from given content based on user requirements."
	quizSystem    = "You are a helpful assistant which helps teachers generate quiz from given content based on user requirements."
)

// quizFormat is the shape description embedded in the quiz prompt.
const quizFormat = `
{
  "quiz_title": str,
  "questions": [
    {
      "question_id": int,
      "question": str,
      "options": [{"option_id": int, "option": str}],
      "correct_option_id": int
    }
  ]
}
`

// Generation parameters per mode.
var (
	summaryParams = GenerateRequest{
		System:          summarySystem,
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            60,
		MaxOutputTokens: 8192,
		ResponseFormat:  FormatText,
	}
	quizParams = GenerateRequest{
		System:          quizSystem,
		Temperature:     0.7,
		TopP:            0.95,
		TopK:            20,
		MaxOutputTokens: 8192,
		ResponseFormat:  FormatJSON,
	}
)

func buildSummaryPrompt(text string) string {
	return "Generate detailed and precise summary in points without leaving any small detail from the given content: " + text
}

func buildQuizPrompt(text string, numQuestions int) string {
	return fmt.Sprintf("Create a quiz of %d questions returning data in this JSON format: \n%s on the content given below\n\n%s",
		numQuestions, quizFormat, text)
}
