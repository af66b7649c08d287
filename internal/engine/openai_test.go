package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewOpenAIClient_Defaults(t *testing.T) {
	c := NewOpenAIClient("sk-test")

	if c.apiKey != "sk-test" {
		t.Errorf("apiKey = %q, want %q", c.apiKey, "sk-test")
	}
	if c.opts.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", c.opts.model, "gpt-4o-mini")
	}
	if c.opts.baseURL != "https://api.openai.com/v1" {
		t.Errorf("baseURL = %q, want default OpenAI URL", c.opts.baseURL)
	}
	if c.opts.maxAttempts != 1 {
		t.Errorf("maxAttempts = %d, want 1", c.opts.maxAttempts)
	}
}

func TestNewOpenAIClient_WithOptions(t *testing.T) {
	c := NewOpenAIClient("sk-test",
		WithModel("google/gemini-2.5-flash"),
		WithBaseURL("https://aiberm.com/v1"),
		WithMaxAttempts(3),
		WithTimeout(5*time.Second),
	)

	if c.opts.model != "google/gemini-2.5-flash" {
		t.Errorf("model = %q, want %q", c.opts.model, "google/gemini-2.5-flash")
	}
	if c.opts.baseURL != "https://aiberm.com/v1" {
		t.Errorf("baseURL = %q, want %q", c.opts.baseURL, "https://aiberm.com/v1")
	}
	if c.opts.maxAttempts != 3 {
		t.Errorf("maxAttempts = %d, want 3", c.opts.maxAttempts)
	}
	if c.opts.httpClient.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", c.opts.httpClient.Timeout)
	}
}

func TestWithBaseURL_TrimsTrailingSlash(t *testing.T) {
	c := NewOpenAIClient("sk-test", WithBaseURL("https://aiberm.com/v1/"))
	if c.opts.baseURL != "https://aiberm.com/v1" {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", c.opts.baseURL)
	}
}

func writeChatResponse(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"choices":[{"message":{"content":` + mustQuote(content) + `}}]}`))
}

func mustQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestOpenAIGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-mock" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer sk-mock")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("request model = %q, want %q", req.Model, "test-model")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hi" {
			t.Errorf("messages = %+v, want system + user", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %+v, want json_object", req.ResponseFormat)
		}
		if req.TopP != 0.95 || req.MaxTokens != 8192 {
			t.Errorf("top_p = %v, max_tokens = %d", req.TopP, req.MaxTokens)
		}

		writeChatResponse(w, "Hello from mock!")
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-mock", WithModel("test-model"), WithBaseURL(srv.URL))
	req := quizParams
	req.Prompt = "hi"
	got, err := c.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Hello from mock!" {
		t.Errorf("Generate = %q, want %q", got, "Hello from mock!")
	}
}

func TestOpenAIGenerate_TextModeHasNoResponseFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["response_format"]; ok {
			t.Errorf("response_format should be omitted in text mode")
		}
		writeChatResponse(w, "ok")
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk", WithBaseURL(srv.URL))
	if _, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi", ResponseFormat: FormatText}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestOpenAIGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestOpenAIGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL))
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIGenerate_NoRetryByDefault(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("server error"))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL))
	if _, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestOpenAIGenerate_RetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("server error"))
			return
		}
		writeChatResponse(w, "recovered")
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL), WithMaxAttempts(2))
	c.opts.backoff = time.Millisecond
	got, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "recovered" {
		t.Errorf("Generate = %q, want %q", got, "recovered")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestOpenAIGenerate_NoRetryOn4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", WithBaseURL(srv.URL), WithMaxAttempts(3))
	c.opts.backoff = time.Millisecond
	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (should not retry 4xx)", attempts)
	}
}

// loadTestEnvFile is a test helper that loads KEY=VALUE pairs from a file
// into env vars (only if not already set). Returns true if the file was found.
func loadTestEnvFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		v = strings.Trim(v, `"'`)
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
		}
	}
	return true
}

// TestIntegration_OpenAI makes a real API call using .env.local config.
// Run explicitly:  go test ./internal/engine/ -run TestIntegration -v
func TestIntegration_OpenAI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	if !loadTestEnvFile("../../.env.local") {
		t.Skip("skipping: ../../.env.local not found")
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("skipping: OPENAI_API_KEY not set")
	}

	c := NewOpenAIClient(apiKey, WithBaseURL(os.Getenv("OPENAI_BASE_URL")), WithModel(os.Getenv("OPENAI_MODEL")))
	t.Logf("base_url=%s  model=%s", c.opts.baseURL, c.opts.model)

	g, err := NewGenerator(c)
	if err != nil {
		t.Fatal(err)
	}
	q, err := g.Quiz(context.Background(), "Water boils at 100 degrees Celsius at sea level. Ice melts at 0 degrees.", 2)
	if err != nil {
		t.Fatalf("Quiz failed: %v", err)
	}
	t.Logf("Quiz: %+v", q)
}
