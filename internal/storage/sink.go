// Package storage provides the output destinations artifacts are handed to
// after a job produces them: local directory save and S3-compatible object
// storage upload. Sinks are fanned out by the batch materializer; a sink
// failure is recorded on the job's result entry, not thrown.
package storage

import (
	"context"

	"subtitle-batcher/internal/domain"
)

// Sink stores one artifact and returns its location descriptor.
type Sink interface {
	Name() string
	Store(ctx context.Context, jobID string, artifact domain.Artifact) (domain.StoredLocation, error)
}
