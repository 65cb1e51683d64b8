package barcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/scanfolders/internal/gemini"
	"github.com/lehigh-university-libraries/scanfolders/internal/ollama"
	"github.com/lehigh-university-libraries/scanfolders/internal/openai"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

// ErrNoBarcode is returned when the image holds no readable barcode
var ErrNoBarcode = errors.New("no barcode found")

const prompt = `Find the barcode or QR code in this image and return only its decoded value.
Return the value exactly as encoded, on a single line, with no explanation or formatting.
If there is no readable barcode or QR code in the image, return NONE.`

// Service decodes barcodes with a vision model provider
type Service struct {
	provider string
	model    string
	decoders map[string]providers.Decoder
}

// NewService picks the provider from BARCODE_PROVIDER (default ollama)
func NewService() *Service {
	return NewServiceFor(os.Getenv("BARCODE_PROVIDER"))
}

// NewServiceFor uses the named provider with the model from its *_MODEL environment variable
func NewServiceFor(provider string) *Service {
	if provider == "" {
		provider = "ollama"
	}
	return &Service{
		provider: provider,
		model:    defaultModel(provider),
		decoders: map[string]providers.Decoder{
			"gemini": gemini.New(),
			"ollama": ollama.New(),
			"openai": openai.New(),
		},
	}
}

// NewWithDecoder uses one decoder under the given provider name
func NewWithDecoder(provider, model string, decoder providers.Decoder) *Service {
	return &Service{
		provider: provider,
		model:    model,
		decoders: map[string]providers.Decoder{provider: decoder},
	}
}

func (s *Service) Provider() string {
	return s.provider
}

// DecodeBarcode returns the value of the barcode in image
func (s *Service) DecodeBarcode(ctx context.Context, image []byte, mimeType string) (string, error) {
	decoder, ok := s.decoders[s.provider]
	if !ok {
		return "", fmt.Errorf("unsupported barcode provider: %s", s.provider)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrNoBarcode)
	}

	text, err := decoder.ExtractText(ctx, providers.Config{
		Model:       s.model,
		Temperature: 0,
		Prompt:      prompt,
	}, image, mimeType)
	if err != nil {
		return "", fmt.Errorf("failed to decode barcode with %s: %w", s.provider, err)
	}

	value := Normalize(text)
	if value == "" {
		return "", ErrNoBarcode
	}
	slog.Info("Decoded barcode", "provider", s.provider, "model", s.model, "value", value)
	return value, nil
}

// Normalize strips the formatting models like to add around a decoded value.
// An empty result means no barcode.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	lines := strings.Split(text, "\n")
	value := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			value = line
			break
		}
	}
	value = strings.Trim(value, "\"'`")
	value = strings.TrimSpace(value)

	if strings.EqualFold(value, "none") || strings.EqualFold(value, "none.") {
		return ""
	}
	// folder names become remote folder names
	value = strings.NewReplacer("/", "-", "\\", "-").Replace(value)
	return value
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			return model
		}
		return "gpt-4o"
	case "gemini":
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			return model
		}
		return "gemini-1.5-flash"
	case "ollama":
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			return model
		}
		return "mistral-small3.2:24b"
	default:
		return ""
	}
}
