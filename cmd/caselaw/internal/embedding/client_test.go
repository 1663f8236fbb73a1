package embedding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a client for server with retries that do not wait.
func newTestClient(serverURL string) *Client {
	var client = NewClient(serverURL, "test-key", "test-model")
	client.retryDelay = time.Millisecond
	return client
}

func writeEmbedding(w http.ResponseWriter, vector ...float32) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(EmbeddingResponse{
		Data:  []EmbeddingData{{Embedding: vector, Index: 0}},
		Model: "test-model",
		Usage: Usage{PromptTokens: 5, TotalTokens: 5},
	})
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	var errResp ErrorResponse
	errResp.Error.Message = message
	errResp.Error.Type = "server_error"
	json.NewEncoder(w).Encode(errResp)
}

func TestNewClient(t *testing.T) {
	var client = NewClient("http://localhost:9999/", "test-key", "test-model")

	if client.apiKey != "test-key" {
		t.Errorf("Expected apiKey 'test-key', got '%s'", client.apiKey)
	}
	if client.Model() != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", client.Model())
	}
	if client.baseURL != "http://localhost:9999" {
		t.Errorf("Expected baseURL 'http://localhost:9999', got '%s'", client.baseURL)
	}
	if client.client == nil {
		t.Error("HTTP client is nil")
	}
	if client.maxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", client.maxRetries)
	}
}

func TestGenerateEmbeddingSuccess(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/embeddings" {
			t.Errorf("Expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header 'Bearer test-key', got '%s'", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type 'application/json', got '%s'", r.Header.Get("Content-Type"))
		}

		var req EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Input != "kıdem tazminatı" || req.Model != "test-model" || req.EncodingFormat != "float" {
			t.Errorf("Unexpected request: %+v", req)
		}

		writeEmbedding(w, 0.1, 0.2, 0.3)
	}))
	defer server.Close()

	var embedding, err = newTestClient(server.URL).GenerateEmbedding(context.Background(), "kıdem tazminatı")
	if err != nil {
		t.Fatalf("Failed to generate embedding: %v", err)
	}

	if len(embedding) != 3 {
		t.Errorf("Expected 3 dimensions, got %d", len(embedding))
	}
	if embedding[0] != 0.1 {
		t.Errorf("Expected first value 0.1, got %f", embedding[0])
	}
}

func TestGenerateEmbeddingRetriesWithBody(t *testing.T) {
	var requests int32
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n = atomic.AddInt32(&requests, 1)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("Failed to read request body: %v", err)
		}
		var req EmbeddingRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("Failed to decode request JSON: %v", err)
		}
		if req.Model == "" || req.Input == "" {
			t.Fatalf("Expected model and input in request, got model=%q input=%q", req.Model, req.Input)
		}

		if n == 1 {
			writeAPIError(w, http.StatusInternalServerError, "temporary error")
			return
		}
		writeEmbedding(w, 0.1, 0.2, 0.3)
	}))
	defer server.Close()

	var embedding, err = newTestClient(server.URL).GenerateEmbedding(context.Background(), "test text")
	if err != nil {
		t.Fatalf("Failed to generate embedding after retry: %v", err)
	}
	if len(embedding) != 3 {
		t.Fatalf("Expected 3 dimensions, got %d", len(embedding))
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", requests)
	}
}

func TestGenerateEmbeddingGivesUpAfterRetries(t *testing.T) {
	var requests int32
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		writeAPIError(w, http.StatusServiceUnavailable, "overloaded")
	}))
	defer server.Close()

	var _, err = newTestClient(server.URL).GenerateEmbedding(context.Background(), "test text")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("Expected server message in error, got: %v", err)
	}
	if atomic.LoadInt32(&requests) != 3 {
		t.Errorf("Expected 3 requests, got %d", requests)
	}
}

func TestGenerateEmbeddingAPIErrorNotRetried(t *testing.T) {
	var requests int32
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		writeAPIError(w, http.StatusUnauthorized, "Invalid API key")
	}))
	defer server.Close()

	var _, err = newTestClient(server.URL).GenerateEmbedding(context.Background(), "test text")
	if err == nil {
		t.Fatal("Expected error for invalid API key, got nil")
	}
	if !strings.Contains(err.Error(), "Invalid API key") {
		t.Errorf("Expected API error message to include server message, got: %v", err)
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Errorf("Expected 1 request, got %d", requests)
	}
}

func TestGenerateEmbeddingEmptyResponse(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(EmbeddingResponse{Model: "test-model"})
	}))
	defer server.Close()

	var _, err = newTestClient(server.URL).GenerateEmbedding(context.Background(), "test text")
	if err == nil {
		t.Error("Expected error for empty response data, got nil")
	}
}

func TestGenerateEmbeddingMissingConfig(t *testing.T) {
	client := NewClient("http://localhost", "", "model")

	if _, err := client.GenerateEmbedding(context.Background(), "test"); err == nil {
		t.Fatalf("expected error for missing api key")
	}

	client.apiKey = "key"
	client.baseURL = ""
	if _, err := client.GenerateEmbedding(context.Background(), "test"); err == nil {
		t.Fatalf("expected error for missing base URL")
	}

	client.baseURL = "http://localhost"
	client.model = ""
	if _, err := client.GenerateEmbedding(context.Background(), "test"); err == nil {
		t.Fatalf("expected error for missing model")
	}
}

func TestGenerateEmbeddingInvalidJSON(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	var _, err = newTestClient(server.URL).GenerateEmbedding(context.Background(), "test text")
	if err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
}

func TestGenerateEmbeddingCancelledContext(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEmbedding(w, 1)
	}))
	defer server.Close()

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	var _, err = newTestClient(server.URL).GenerateEmbedding(ctx, "test text")
	if err == nil {
		t.Fatal("Expected error for cancelled context, got nil")
	}
}
