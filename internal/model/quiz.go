package model

// Quiz is the structured output of quiz generation.
type Quiz struct {
	QuizTitle string     `json:"quiz_title"`
	Questions []Question `json:"questions"`
}

// Question is a single multiple-choice question.
type Question struct {
	QuestionID      int      `json:"question_id"`
	Question        string   `json:"question"`
	Options         []Option `json:"options"`
	CorrectOptionID int      `json:"correct_option_id"`
}

// Option is one answer choice of a Question.
type Option struct {
	OptionID int    `json:"option_id"`
	Option   string `json:"option"`
}

// Clone returns a deep copy of the quiz. A nil quiz clones to nil.
func (q *Quiz) Clone() *Quiz {
	if q == nil {
		return nil
	}
	cp := &Quiz{QuizTitle: q.QuizTitle}
	if q.Questions != nil {
		cp.Questions = make([]Question, len(q.Questions))
		for i, qu := range q.Questions {
			if qu.Options != nil {
				qu.Options = append([]Option(nil), qu.Options...)
			}
			cp.Questions[i] = qu
		}
	}
	return cp
}

// HasOption reports whether id names one of the question's options.
func (q Question) HasOption(id int) bool {
	for _, o := range q.Options {
		if o.OptionID == id {
			return true
		}
	}
	return false
}
