package model

import (
	"time"
	"unicode/utf8"
)

// Generated artifact kinds, also used as download types.
const (
	KindSummary = "summary"
	KindQuiz    = "quiz"
)

// Artifact is an uploaded PDF together with its extracted text and the
// summary/quiz derived from it.
type Artifact struct {
	ID            string    `json:"file_id"`
	Filename      string    `json:"filename"`
	StoragePath   string    `json:"storage_path"`
	ExtractedText string    `json:"-"`
	Summary       string    `json:"summary,omitempty"`
	Quiz          *Quiz     `json:"quiz,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewArtifact creates an Artifact for freshly extracted text.
func NewArtifact(id, filename, storagePath, text string) Artifact {
	return Artifact{
		ID:            id,
		Filename:      filename,
		StoragePath:   storagePath,
		ExtractedText: text,
		CreatedAt:     time.Now().UTC(),
	}
}

// HasSummary reports whether a summary has been generated.
func (a *Artifact) HasSummary() bool { return a.Summary != "" }

// HasQuiz reports whether a quiz has been generated.
func (a *Artifact) HasQuiz() bool { return a.Quiz != nil }

// ContentLength is the extracted text length in characters.
func (a *Artifact) ContentLength() int {
	return utf8.RuneCountInString(a.ExtractedText)
}

// Info projects the artifact into its payload-free status view.
func (a *Artifact) Info() FileInfo {
	return FileInfo{
		FileID:        a.ID,
		Filename:      a.Filename,
		ContentLength: a.ContentLength(),
		HasSummary:    a.HasSummary(),
		HasQuiz:       a.HasQuiz(),
	}
}

// FileInfo is the status projection returned by file-info and list-files.
type FileInfo struct {
	FileID        string `json:"file_id"`
	Filename      string `json:"filename"`
	ContentLength int    `json:"content_length"`
	HasSummary    bool   `json:"has_summary"`
	HasQuiz       bool   `json:"has_quiz"`
}

// SummaryFilename is the processed-dir file name for an artifact's summary.
func SummaryFilename(id string) string { return id + "_summary.txt" }

// QuizFilename is the processed-dir file name for an artifact's quiz.
func QuizFilename(id string) string { return id + "_quiz.json" }

// GeneratedFilename maps a download kind to its file name. ok is false
// for unknown kinds.
func GeneratedFilename(kind, id string) (name string, ok bool) {
	switch kind {
	case KindSummary:
		return SummaryFilename(id), true
	case KindQuiz:
		return QuizFilename(id), true
	default:
		return "", false
	}
}
