package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"subtitle-batcher/internal/domain"
)

// LocalSink writes artifacts beneath a root directory, one subdirectory
// per job so parallel batches of the same file never collide.
type LocalSink struct {
	root string
}

// NewLocalSink creates a sink rooted at dir.
func NewLocalSink(dir string) (*LocalSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("local sink: output directory is required")
	}
	return &LocalSink{root: dir}, nil
}

// Name identifies the sink in result entries and logs.
func (s *LocalSink) Name() string {
	return "local"
}

// Store writes the artifact content to <root>/<jobID>/<fileName>.
func (s *LocalSink) Store(_ context.Context, jobID string, artifact domain.Artifact) (domain.StoredLocation, error) {
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.StoredLocation{}, fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, artifact.FileName)
	if err := os.WriteFile(path, artifact.Content, 0o644); err != nil {
		return domain.StoredLocation{}, fmt.Errorf("write artifact: %w", err)
	}

	return domain.StoredLocation{Sink: s.Name(), Path: path}, nil
}
