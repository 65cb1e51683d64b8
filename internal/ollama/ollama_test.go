package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

func TestExtractText(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected /api/generate, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "12345"})
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_URL", srv.URL)

	text, err := New().ExtractText(context.Background(), providers.Config{Model: "llava", Prompt: "read"}, []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != "12345" {
		t.Errorf("Expected 12345, got %q", text)
	}

	images, ok := got["images"].([]interface{})
	if !ok || len(images) != 1 || images[0] != base64.StdEncoding.EncodeToString([]byte("img")) {
		t.Errorf("Expected the base64 image in the request, got %v", got["images"])
	}
	if got["model"] != "llava" || got["stream"] != false {
		t.Errorf("Unexpected request body: %v", got)
	}
}

func TestExtractTextErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_URL", srv.URL)

	if _, err := New().ExtractText(context.Background(), providers.Config{}, []byte("img"), ""); err == nil {
		t.Error("Expected an error for a non-200 response")
	}
}
