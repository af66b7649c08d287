package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLlamaParse serves the upload, job status and JSON result endpoints.
// The job reports PENDING for pendingPolls status checks before finalStatus.
func fakeLlamaParse(t *testing.T, pendingPolls int32, finalStatus string) (*httptest.Server, *[]byte) {
	t.Helper()
	var uploaded []byte
	var polls int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/parsing/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer llx-test", r.Header.Get("Authorization"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		assert.Equal(t, "abc_doc.pdf", hdr.Filename)
		uploaded, _ = io.ReadAll(f)
		w.Write([]byte(`{"id":"job-1","status":"PENDING"}`))
	})
	mux.HandleFunc("GET /api/v1/parsing/job/job-1", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&polls, 1) <= pendingPolls {
			w.Write([]byte(`{"id":"job-1","status":"PENDING"}`))
			return
		}
		w.Write([]byte(`{"id":"job-1","status":"` + finalStatus + `","error_message":"bad pdf"}`))
	})
	mux.HandleFunc("GET /api/v1/parsing/job/job-1/result/json", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"pages":[{"page":1,"md":"# Title"},{"page":2,"md":"Body text"}]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &uploaded
}

func newLlamaTestFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "uploads/abc_doc.pdf", []byte("%PDF-1.4 fake"), 0o644))
	return fs
}

func TestLlamaParseExtractor_Success(t *testing.T) {
	srv, uploaded := fakeLlamaParse(t, 2, "SUCCESS")

	e := NewLlamaParseExtractor(newLlamaTestFs(t), "llx-test",
		WithLlamaBaseURL(srv.URL), WithPollInterval(time.Millisecond))
	text, err := e.Extract(context.Background(), "uploads/abc_doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "# Title\nBody text", text)
	assert.Equal(t, "%PDF-1.4 fake", string(*uploaded))
}

func TestLlamaParseExtractor_JobError(t *testing.T) {
	srv, _ := fakeLlamaParse(t, 0, "ERROR")

	e := NewLlamaParseExtractor(newLlamaTestFs(t), "llx-test",
		WithLlamaBaseURL(srv.URL), WithPollInterval(time.Millisecond))
	_, err := e.Extract(context.Background(), "uploads/abc_doc.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad pdf")
}

func TestLlamaParseExtractor_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewLlamaParseExtractor(newLlamaTestFs(t), "bad", WithLlamaBaseURL(srv.URL))
	_, err := e.Extract(context.Background(), "uploads/abc_doc.pdf")
	var ae *apiError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
}

func TestLlamaParseExtractor_MissingFile(t *testing.T) {
	e := NewLlamaParseExtractor(afero.NewMemMapFs(), "k")
	_, err := e.Extract(context.Background(), "uploads/none.pdf")
	assert.Error(t, err)
}

func TestLlamaParseExtractor_ContextCancelledWhilePolling(t *testing.T) {
	srv, _ := fakeLlamaParse(t, 1<<30, "SUCCESS")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	e := NewLlamaParseExtractor(newLlamaTestFs(t), "llx-test",
		WithLlamaBaseURL(srv.URL), WithPollInterval(5*time.Millisecond))
	_, err := e.Extract(ctx, "uploads/abc_doc.pdf")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// buildPDF renders one page per entry in pages.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 14)
	for _, p := range pages {
		pdf.AddPage()
		pdf.Cell(40, 10, p)
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestFitzExtractor(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "uploads/x_sample.pdf", buildPDF(t, "Photosynthesis", "Chlorophyll"), 0o644))

	text, err := NewFitzExtractor(fs).Extract(context.Background(), "uploads/x_sample.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Photosynthesis")
	assert.Contains(t, text, "Chlorophyll")
	assert.Less(t, bytes.Index([]byte(text), []byte("Photosynthesis")), bytes.Index([]byte(text), []byte("Chlorophyll")), "pages keep their order")
}

func TestFitzExtractor_NotAPDF(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "uploads/x_bad.pdf", []byte("hello"), 0o644))

	_, err := NewFitzExtractor(fs).Extract(context.Background(), "uploads/x_bad.pdf")
	assert.Error(t, err)
}
