package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// LlamaParseExtractor converts documents to markdown with the LlamaParse
// cloud API: upload, poll the job, then fetch the per-page result.
type LlamaParseExtractor struct {
	fs           afero.Fs
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	client       *http.Client
}

// LlamaParseOption configures the LlamaParse extractor.
type LlamaParseOption func(*LlamaParseExtractor)

// WithLlamaBaseURL overrides the API endpoint.
func WithLlamaBaseURL(url string) LlamaParseOption {
	return func(e *LlamaParseExtractor) {
		if url != "" {
			e.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithPollInterval sets the delay between job status checks.
func WithPollInterval(d time.Duration) LlamaParseOption {
	return func(e *LlamaParseExtractor) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithLlamaTimeout bounds each HTTP request to the API.
func WithLlamaTimeout(d time.Duration) LlamaParseOption {
	return func(e *LlamaParseExtractor) {
		if d > 0 {
			e.client = &http.Client{Timeout: d}
		}
	}
}

// NewLlamaParseExtractor creates an extractor reading source files from fs.
func NewLlamaParseExtractor(fs afero.Fs, apiKey string, opts ...LlamaParseOption) *LlamaParseExtractor {
	e := &LlamaParseExtractor{
		fs:           fs,
		apiKey:       apiKey,
		baseURL:      "https://api.cloud.llamaindex.ai",
		pollInterval: 2 * time.Second,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type llamaJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error_message,omitempty"`
}

type llamaJSONResult struct {
	Pages []struct {
		Page int    `json:"page"`
		MD   string `json:"md"`
	} `json:"pages"`
}

// Extract uploads the file at path and returns the markdown of all pages
// joined with newlines.
func (e *LlamaParseExtractor) Extract(ctx context.Context, path string) (string, error) {
	jobID, err := e.upload(ctx, path)
	if err != nil {
		return "", fmt.Errorf("llamaparse upload: %w", err)
	}
	if err := e.wait(ctx, jobID); err != nil {
		return "", fmt.Errorf("llamaparse job %s: %w", jobID, err)
	}

	var res llamaJSONResult
	if err := e.getJSON(ctx, "/api/v1/parsing/job/"+jobID+"/result/json", &res); err != nil {
		return "", fmt.Errorf("llamaparse result: %w", err)
	}
	pages := make([]string, 0, len(res.Pages))
	for _, p := range res.Pages {
		pages = append(pages, p.MD)
	}
	return strings.Join(pages, "\n"), nil
}

func (e *LlamaParseExtractor) upload(ctx context.Context, path string) (string, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/v1/parsing/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var job llamaJob
	if err := e.do(req, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", errors.New("no job id in response")
	}
	return job.ID, nil
}

func (e *LlamaParseExtractor) wait(ctx context.Context, jobID string) error {
	for {
		var job llamaJob
		if err := e.getJSON(ctx, "/api/v1/parsing/job/"+jobID, &job); err != nil {
			return err
		}
		switch strings.ToUpper(job.Status) {
		case "SUCCESS":
			return nil
		case "ERROR", "CANCELED", "CANCELLED":
			if job.Error != "" {
				return fmt.Errorf("status %s: %s", job.Status, job.Error)
			}
			return fmt.Errorf("status %s", job.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.pollInterval):
		}
	}
}

func (e *LlamaParseExtractor) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return err
	}
	return e.do(req, out)
}

func (e *LlamaParseExtractor) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &apiError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
