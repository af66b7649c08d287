package engine

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/yangwenmai/pdfquiz/internal/files"
	"github.com/yangwenmai/pdfquiz/internal/model"
	"github.com/yangwenmai/pdfquiz/internal/store"
	"github.com/yangwenmai/pdfquiz/internal/worker"
)

// Default and maximum number of quiz questions.
const (
	DefaultQuizQuestions = 20
	MaxQuizQuestions     = 100
)

// fallbackFilename is used when sanitizing leaves nothing of the client's name.
const fallbackFilename = "upload.pdf"

// Pipeline orchestrates upload, extraction and generation for artifacts.
// Registry writes happen only after the corresponding upstream call succeeded.
type Pipeline struct {
	registry  store.Registry
	files     *files.Store
	extractor DocumentExtractor
	gen       *Generator
	pool      *worker.Pool
	log       zerolog.Logger

	// flights collapses concurrent generation of the same (kind, id).
	flights singleflight.Group

	defaultQuestions int
	maxQuestions     int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithQuestionLimits sets the default and maximum quiz question counts.
func WithQuestionLimits(def, max int) PipelineOption {
	return func(p *Pipeline) {
		if max > 0 {
			p.maxQuestions = max
		}
		if def > 0 {
			p.defaultQuestions = def
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(log zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(reg store.Registry, fs *files.Store, extractor DocumentExtractor, gen *Generator, pool *worker.Pool, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry:         reg,
		files:            fs,
		extractor:        extractor,
		gen:              gen,
		pool:             pool,
		log:              zerolog.Nop(),
		defaultQuestions: DefaultQuizQuestions,
		maxQuestions:     MaxQuizQuestions,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UploadInput is a client-supplied source document.
type UploadInput struct {
	Filename string
	Body     io.Reader
}

// UploadResult describes a freshly registered artifact.
type UploadResult struct {
	FileID        string
	Filename      string
	ContentLength int
}

// SummaryResult is returned by Summarize. AlreadyExisted is true when the
// summary came from the registry without calling the model.
type SummaryResult struct {
	FileID         string
	Summary        string
	SummaryFile    string
	AlreadyExisted bool
}

// QuizResult is returned by Quiz.
type QuizResult struct {
	FileID         string
	QuizFile       string
	Quiz           *model.Quiz
	AlreadyExisted bool
}

// Download is an open generated file ready to be streamed.
type Download struct {
	Name        string
	ContentType string
	ModTime     time.Time
	Content     io.ReadSeekCloser
}

// Upload stores the document, extracts its text on the worker pool and
// registers the artifact. Non-PDF names are rejected before anything is
// written. If extraction fails the source file stays on disk and nothing
// is registered.
func (p *Pipeline) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Filename == "" {
		return nil, model.InvalidInput("No file selected")
	}
	if !isPDF(in.Filename) {
		return nil, model.InvalidInput("Only PDF files are allowed")
	}

	name := files.SanitizeFilename(in.Filename)
	if name == "" {
		name = fallbackFilename
	}

	a, err := p.runExtract(ctx, name, in.Body)
	if err != nil {
		return nil, err
	}
	p.log.Info().Str("file_id", a.ID).Str("filename", a.Filename).Int("content_length", a.ContentLength()).Msg("pdf uploaded and parsed")
	return &UploadResult{FileID: a.ID, Filename: a.Filename, ContentLength: a.ContentLength()}, nil
}

// Summarize returns the artifact's summary, generating it on first use.
// Concurrent calls for the same id share one model call.
func (p *Pipeline) Summarize(ctx context.Context, id string) (*SummaryResult, error) {
	a, err := p.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.HasSummary() {
		return &SummaryResult{FileID: id, Summary: a.Summary, SummaryFile: model.SummaryFilename(id), AlreadyExisted: true}, nil
	}

	v, err := p.collapse(ctx, model.KindSummary+":"+id, func(ctx context.Context) (any, error) {
		return p.runSummarize(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SummaryResult), nil
}

// Quiz returns the artifact's quiz, generating it on first use with
// numQuestions questions (nil means the default). Once a quiz exists it is
// returned as is, whatever count is requested.
func (p *Pipeline) Quiz(ctx context.Context, id string, numQuestions *int) (*QuizResult, error) {
	a, err := p.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if a.HasQuiz() {
		return &QuizResult{FileID: id, QuizFile: model.QuizFilename(id), Quiz: a.Quiz, AlreadyExisted: true}, nil
	}

	n := p.defaultQuestions
	if numQuestions != nil {
		n = *numQuestions
	}
	if n < 1 || n > p.maxQuestions {
		return nil, model.InvalidInput("num_questions must be between 1 and %d", p.maxQuestions)
	}

	v, err := p.collapse(ctx, model.KindQuiz+":"+id, func(ctx context.Context) (any, error) {
		return p.runQuiz(ctx, id, n)
	})
	if err != nil {
		return nil, err
	}
	return v.(*QuizResult), nil
}

// Info returns the status projection of one artifact.
func (p *Pipeline) Info(ctx context.Context, id string) (*model.FileInfo, error) {
	a, err := p.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info := a.Info()
	return &info, nil
}

// List returns the status projection of every artifact in upload order.
func (p *Pipeline) List(ctx context.Context) ([]model.FileInfo, error) {
	return p.registry.List(ctx)
}

// Download opens a generated file. kind must be model.KindSummary or
// model.KindQuiz. The caller must close Content.
func (p *Pipeline) Download(ctx context.Context, kind, id string) (*Download, error) {
	name, ok := model.GeneratedFilename(kind, id)
	if !ok {
		return nil, model.InvalidInput("Invalid file type")
	}
	if _, err := p.registry.Get(ctx, id); err != nil {
		return nil, err
	}

	f, err := p.files.OpenGenerated(name)
	if err != nil {
		if files.IsNotExist(err) {
			return nil, model.ErrNotGenerated
		}
		return nil, err
	}
	d := &Download{Name: name, ContentType: "text/plain; charset=utf-8", Content: f}
	if kind == model.KindQuiz {
		d.ContentType = "application/json"
	}
	if st, err := f.Stat(); err == nil {
		d.ModTime = st.ModTime()
	}
	return d, nil
}

// collapse runs fn once per key among concurrent callers. The shared work
// is detached from any single caller's cancellation; a caller whose ctx
// ends stops waiting but the work completes and is recorded.
func (p *Pipeline) collapse(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := p.flights.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// isPDF reports whether name has a .pdf extension, case-insensitively.
func isPDF(name string) bool {
	return strings.EqualFold(path.Ext(strings.ReplaceAll(name, "\\", "/")), ".pdf")
}

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the failed step.
func (e *StepError) StepName() string {
	return e.Step
}
