package gemini

import (
	"context"
	"testing"

	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

func TestImageFormat(t *testing.T) {
	tests := map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpeg",
		"image/webp": "webp",
		"":           "jpeg",
		"text/plain": "jpeg",
	}
	for in, want := range tests {
		if got := imageFormat(in); got != want {
			t.Errorf("imageFormat(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestExtractTextMissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := New().ExtractText(context.Background(), providers.Config{}, []byte("x"), "image/png"); err == nil {
		t.Error("Expected an error without an API key")
	}
}
