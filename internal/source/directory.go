package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/timmy/capvis/internal/domain"
)

// imageExtensions are the formats accepted for captioning. WebP decoding is
// registered by the render package's x/image import.
var imageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

// DirectorySource lists image files from a flat (non-recursive) directory.
type DirectorySource struct {
	dir string
}

// NewDirectorySource creates a source over dir. The directory must exist and
// be readable; List fails otherwise.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

// GetSourceID returns the stable identifier for this source.
func (s *DirectorySource) GetSourceID() string {
	return "directory:" + s.dir
}

// List returns the directory's image files in name order.
func (s *DirectorySource) List(ctx context.Context) ([]domain.ImageRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory %s: %w", s.dir, err)
	}

	var images []domain.ImageRecord
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		format := domain.ImageFormat(entry.Name())
		if !imageExtensions[format] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		path := filepath.Join(s.dir, entry.Name())
		images = append(images, domain.ImageRecord{
			Key:     domain.ImageKey(path),
			Path:    path,
			Format:  format,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// os.ReadDir returns entries sorted by name, which keeps the order
	// stable for -limit truncation.
	return images, nil
}
