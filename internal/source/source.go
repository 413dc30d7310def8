package source

import (
	"context"

	"github.com/timmy/capvis/internal/domain"
)

// Source defines the interface for image sources feeding the batch pipeline.
type Source interface {
	// GetSourceID returns the stable identifier for this source.
	GetSourceID() string

	// List discovers the source's images. The returned order is stable
	// across calls so batch truncation is deterministic.
	List(ctx context.Context) ([]domain.ImageRecord, error)
}
