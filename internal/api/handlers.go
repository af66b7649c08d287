package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yangwenmai/pdfquiz/internal/engine"
	"github.com/yangwenmai/pdfquiz/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

// ---------------------------------------------------------------------------
// GET /api/health
// ---------------------------------------------------------------------------

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Message: "PDF API Server is running"})
}

// ---------------------------------------------------------------------------
// POST /api/upload-pdf
// ---------------------------------------------------------------------------

type uploadResponse struct {
	Message       string `json:"message"`
	FileID        string `json:"file_id"`
	Filename      string `json:"filename"`
	ContentLength int    `json:"content_length"`
}

// handleUpload streams the multipart field "file" into the pipeline
// without buffering the whole document in memory.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "No file provided")
			return
		}
		if err != nil {
			s.writeServiceError(w, r, model.InvalidInput("malformed multipart body"))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		res, err := s.svc.Upload(r.Context(), engine.UploadInput{Filename: part.FileName(), Body: part})
		part.Close()
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, uploadResponse{
			Message:       "PDF uploaded and parsed successfully",
			FileID:        res.FileID,
			Filename:      res.Filename,
			ContentLength: res.ContentLength,
		})
		return
	}
}

// ---------------------------------------------------------------------------
// POST /api/generate-summary/{id}
// ---------------------------------------------------------------------------

type summaryResponse struct {
	Message     string `json:"message"`
	FileID      string `json:"file_id"`
	Summary     string `json:"summary"`
	SummaryFile string `json:"summary_file"`
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Summarize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	msg := "Summary generated successfully"
	if res.AlreadyExisted {
		msg = "Summary already exists"
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Message:     msg,
		FileID:      res.FileID,
		Summary:     res.Summary,
		SummaryFile: res.SummaryFile,
	})
}

// ---------------------------------------------------------------------------
// POST /api/generate-quiz/{id}
// ---------------------------------------------------------------------------

type quizRequest struct {
	NumQuestions *int `json:"num_questions"`
}

type quizResponse struct {
	Message  string      `json:"message"`
	FileID   string      `json:"file_id"`
	QuizFile string      `json:"quiz_file"`
	Quiz     *model.Quiz `json:"quiz"`
}

func (s *Server) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	res, err := s.svc.Quiz(r.Context(), chi.URLParam(r, "id"), req.NumQuestions)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	msg := "Quiz generated successfully"
	if res.AlreadyExisted {
		msg = "Quiz already exists"
	}
	writeJSON(w, http.StatusOK, quizResponse{
		Message:  msg,
		FileID:   res.FileID,
		QuizFile: res.QuizFile,
		Quiz:     res.Quiz,
	})
}

// isJSON reports whether the request declares a JSON body.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// ---------------------------------------------------------------------------
// GET /api/file-info/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Info(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ---------------------------------------------------------------------------
// GET /api/download/{type}/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Download(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer d.Content.Close()

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}))
	http.ServeContent(w, r, d.Name, d.ModTime, d.Content)
}

// ---------------------------------------------------------------------------
// GET /api/list-files
// ---------------------------------------------------------------------------

type listResponse struct {
	Message    string           `json:"message"`
	Files      []model.FileInfo `json:"files"`
	TotalFiles int              `json:"total_files"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.FileInfo{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Message:    "Files retrieved successfully",
		Files:      list,
		TotalFiles: len(list),
	})
}
