package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// ImageRecord identifies one source image. Records are created during
// discovery and never mutated afterwards.
type ImageRecord struct {
	Key     string    // stable identity, derived from the file name
	Path    string    // absolute or relative path to the image file
	Format  string    // file extension without the dot (jpg, png, ...)
	Size    int64     // file size in bytes, used for cache freshness
	ModTime time.Time // last modification time, used for cache freshness
}

// ImageKey derives the stable caption key for an image path: the base file
// name without its extension.
func ImageKey(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImageFormat returns the lowercase extension without the dot.
func ImageFormat(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}
