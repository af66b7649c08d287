package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/yangwenmai/pdfquiz/internal/engine"
	"github.com/yangwenmai/pdfquiz/internal/logging"
	"github.com/yangwenmai/pdfquiz/internal/model"
)

// multipartOverhead is added to the upload limit to leave room for
// multipart headers and boundaries around the file itself.
const multipartOverhead int64 = 1 << 20

// Service is the set of artifact operations the HTTP surface exposes.
type Service interface {
	Upload(ctx context.Context, in engine.UploadInput) (*engine.UploadResult, error)
	Summarize(ctx context.Context, id string) (*engine.SummaryResult, error)
	Quiz(ctx context.Context, id string, numQuestions *int) (*engine.QuizResult, error)
	Info(ctx context.Context, id string) (*model.FileInfo, error)
	List(ctx context.Context) ([]model.FileInfo, error)
	Download(ctx context.Context, kind, id string) (*engine.Download, error)
}

var _ Service = (*engine.Pipeline)(nil)

// Config holds HTTP-layer settings.
type Config struct {
	// CORSOrigin is the allowed CORS origin. Empty means "*".
	CORSOrigin string
	// MaxUploadBytes caps the request body of the upload endpoint.
	MaxUploadBytes int64
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	svc    Service
	cfg    Config
	log    zerolog.Logger
	router chi.Router
}

// New creates a new API server.
func New(svc Service, cfg Config, log zerolog.Logger) *Server {
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	srv := &Server{svc: svc, cfg: cfg, log: log, router: chi.NewRouter()}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.AccessLog(s.log))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.CORSOrigin))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.With(limitBody(s.cfg.MaxUploadBytes)).Post("/upload-pdf", s.handleUpload)
		r.Post("/generate-summary/{id}", s.handleGenerateSummary)
		r.With(limitBody(0)).Post("/generate-quiz/{id}", s.handleGenerateQuiz)
		r.Get("/file-info/{id}", s.handleFileInfo)
		r.Get("/download/{type}/{id}", s.handleDownload)
		r.Get("/list-files", s.handleListFiles)
	})
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers for origin and answers preflight requests.
func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitBody restricts the request body. maxFile <= 0 applies only a 1 MB
// cap for small JSON bodies.
func limitBody(maxFile int64) func(http.Handler) http.Handler {
	limit := multipartOverhead
	if maxFile > 0 {
		limit += maxFile
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps a service error onto the status taxonomy:
// client input 400, unknown id 404, upstream and internal failures 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ce  *model.ClientInputError
		ee  *model.ExtractionError
		ge  *model.GenerationError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ce):
		writeError(w, http.StatusBadRequest, ce.Message)
	case errors.As(err, &mbe):
		writeError(w, http.StatusBadRequest, "file too large")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, model.ErrNotGenerated):
		writeError(w, http.StatusNotFound, model.ErrNotGenerated.Error())
	case errors.As(err, &ee):
		writeError(w, http.StatusInternalServerError, "Failed to parse PDF")
	case errors.As(err, &ge):
		writeError(w, http.StatusInternalServerError, "Failed to generate "+ge.Kind)
	default:
		s.log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
