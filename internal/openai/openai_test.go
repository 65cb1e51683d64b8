package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

func TestExtractText(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected bearer token, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ABC-42"}}]}`))
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", srv.URL+"/v1/")

	text, err := New().ExtractText(context.Background(), providers.Config{Model: "gpt-4o", Prompt: "read"}, []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != "ABC-42" {
		t.Errorf("Expected ABC-42, got %q", text)
	}
	if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
		t.Fatalf("Unexpected messages: %+v", body.Messages)
	}
	if uri := body.Messages[0].Content[1].ImageURL.URL; !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("Expected a PNG data URI, got %q", uri)
	}
}

func TestExtractTextMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New().ExtractText(context.Background(), providers.Config{}, nil, ""); err == nil {
		t.Error("Expected an error without an API key")
	}
}

func TestExtractTextNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "k")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	if _, err := New().ExtractText(context.Background(), providers.Config{}, []byte("x"), ""); err == nil {
		t.Error("Expected an error when no choices are returned")
	}
}
