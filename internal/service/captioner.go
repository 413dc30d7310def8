package service

import (
	"context"
	"fmt"

	"github.com/timmy/capvis/internal/config"
	"github.com/timmy/capvis/internal/domain"
)

// Captioner wraps a call to an external vision-language inference endpoint.
// Implementations do not retry; retry policy belongs to the BatchRunner.
type Captioner interface {
	// Model returns the model identifier being used.
	Model() string

	// Probe checks that the inference endpoint is reachable and the model
	// is available. Used as a startup precondition.
	Probe(ctx context.Context) error

	// Describe sends the image to the endpoint and returns its caption.
	// A response that is not valid JSON is returned as a raw-text caption,
	// never as an error. Fails with domain.ErrServiceUnavailable when the
	// endpoint cannot be reached and domain.ErrModel when it returns an
	// explicit error.
	Describe(ctx context.Context, imagePath string) (*domain.Caption, error)
}

// CaptionStore persists and retrieves one caption record per image key.
// Implementations must be safe for concurrent Put calls on distinct keys.
type CaptionStore interface {
	// Has reports whether a fresh record exists for the image.
	Has(ctx context.Context, img domain.ImageRecord) (bool, error)

	// Get retrieves the caption for key, domain.ErrNotFound on a miss.
	Get(ctx context.Context, key string) (*domain.Caption, error)

	// Put durably persists the caption, overwriting any prior record.
	Put(ctx context.Context, img domain.ImageRecord, caption *domain.Caption, model string) error

	// Keys returns all known caption keys.
	Keys(ctx context.Context) ([]string, error)
}

// NewCaptioner creates the provider selected by cfg.Provider.
func NewCaptioner(cfg *config.VLMConfig) (Captioner, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaCaptioner(cfg)
	case "openai":
		return NewOpenAICaptioner(cfg), nil
	default:
		return nil, fmt.Errorf("unknown vlm provider: %s", cfg.Provider)
	}
}
