// Package archive stores raw fetched HTML so page bodies can be re-examined
// after a crawl without refetching. Backends: in-memory (development), local
// filesystem, and Google Cloud Storage.
package archive

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/seoscope/crawler/internal/crawl"
)

// Backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config selects and parameterizes an archive backend.
type Config struct {
	Backend string
	// BaseDir is the root directory for the local backend.
	BaseDir string
	// Bucket is the GCS bucket for the gcs backend.
	Bucket string
}

// New builds the archive named by cfg.Backend. An empty backend disables
// archiving and returns nil.
func New(ctx context.Context, cfg Config) (crawl.Archive, error) {
	switch strings.ToLower(cfg.Backend) {
	case "":
		return nil, nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendLocal:
		return NewLocal(cfg.BaseDir)
	case BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create GCS client: %w", err)
		}
		return NewGCS(client, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
