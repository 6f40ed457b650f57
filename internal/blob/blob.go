package blob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"redub/internal/config"
)

// Store abstracts the object store holding video and audio artifacts.
type Store interface {
	// Put uploads the contents of r under key.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Get opens the object at key for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Exists reports whether an object is present at key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the object at key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object under the given key prefix and
	// returns the number of objects deleted.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// List returns the keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// PublicURL returns the externally reachable URL for key, or "" when the
	// store has no public endpoint configured.
	PublicURL(key string) string
}

// New constructs the store selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return NewS3(ctx, cfg.Storage)
	case "fs":
		return NewFS(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// ContentTypeFor guesses a MIME type from the key's extension, falling back
// to application/octet-stream.
func ContentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".mp4":
		return "video/mp4"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// CleanKey normalizes an object key: forward slashes, no leading slash.
func CleanKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	return strings.TrimLeft(path.Clean(key), "/")
}
