package images

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

// pngHeader is enough of a PNG file for content sniffing
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	data := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 5000)...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	for _, locator := range []string{path, "file://" + path} {
		t.Run(locator, func(t *testing.T) {
			content, err := NewOpener().Open(context.Background(), locator)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			defer content.Close()

			if content.Size != int64(len(data)) {
				t.Errorf("Expected size %d, got %d", len(data), content.Size)
			}
			if content.MimeType != "image/png" {
				t.Errorf("Expected image/png, got %s", content.MimeType)
			}
			got, err := io.ReadAll(content)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, data) {
				t.Error("Expected sniffing not to consume the stream")
			}
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := NewOpener().Open(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, providers.ErrLocalResourceUnavailable) {
		t.Errorf("Expected ErrLocalResourceUnavailable, got %v", err)
	}

	_, err = NewOpener().Open(context.Background(), t.TempDir())
	if !errors.Is(err, providers.ErrLocalResourceUnavailable) {
		t.Errorf("Expected ErrLocalResourceUnavailable for a directory, got %v", err)
	}
}

func TestOpenURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	content, err := NewOpener().Open(context.Background(), srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer content.Close()
	if content.MimeType != "image/png" {
		t.Errorf("Expected image/png, got %s", content.MimeType)
	}
	if content.Size != int64(len(pngHeader)) {
		t.Errorf("Expected size %d, got %d", len(pngHeader), content.Size)
	}

	_, err = NewOpener().Open(context.Background(), srv.URL+"/missing.png")
	if !errors.Is(err, providers.ErrLocalResourceUnavailable) {
		t.Errorf("Expected ErrLocalResourceUnavailable, got %v", err)
	}
}
