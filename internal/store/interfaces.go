package store

import (
	"context"

	"github.com/yangwenmai/pdfquiz/internal/model"
)

// ArtifactReader provides read access to artifacts.
type ArtifactReader interface {
	// Get returns the artifact or model.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Artifact, error)
	// List returns status projections in upload order.
	List(ctx context.Context) ([]model.FileInfo, error)
}

// ArtifactWriter provides write access to artifacts.
type ArtifactWriter interface {
	Put(ctx context.Context, a model.Artifact) error
	// SetSummary stores text unless a summary already exists, and returns
	// the summary now held by the registry.
	SetSummary(ctx context.Context, id, text string) (string, error)
	// SetQuiz stores q unless a quiz already exists, and returns the quiz
	// now held by the registry.
	SetQuiz(ctx context.Context, id string, q *model.Quiz) (*model.Quiz, error)
}

// Registry is the authoritative store of processed artifacts.
type Registry interface {
	ArtifactReader
	ArtifactWriter
}
