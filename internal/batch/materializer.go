package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"subtitle-batcher/internal/domain"
	"subtitle-batcher/internal/storage"
)

// Materializer hands produced artifacts to the configured output sinks.
// Individual sink failures are recorded on the result entry; the entry as a
// whole fails only when every sink fails for it.
type Materializer struct {
	sinks  []storage.Sink
	logger *slog.Logger
}

// NewMaterializer creates a materializer over zero or more sinks.
func NewMaterializer(sinks ...storage.Sink) *Materializer {
	return &Materializer{
		sinks:  sinks,
		logger: slog.Default().With("component", "materializer"),
	}
}

// Materialize stores one artifact in every sink and builds its result
// entry. With zero sinks configured the artifact is produced but stored
// nowhere, which is a valid caller choice.
func (m *Materializer) Materialize(ctx context.Context, jobID string, artifact domain.Artifact) (domain.ResultEntry, error) {
	entry := domain.ResultEntry{
		FileName: artifact.FileName,
		Format:   artifact.Format,
		Language: artifact.Language,
		Size:     int64(len(artifact.Content)),
	}

	var failures []string
	for _, sink := range m.sinks {
		location, err := sink.Store(ctx, jobID, artifact)
		if err != nil {
			m.logger.Warn("sink failed", "sink", sink.Name(), "file", artifact.FileName, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", sink.Name(), err))
			continue
		}
		entry.Locations = append(entry.Locations, location)
	}
	entry.SinkErrors = failures

	if len(m.sinks) > 0 && len(entry.Locations) == 0 {
		return entry, fmt.Errorf("all sinks failed: %s", strings.Join(failures, "; "))
	}
	return entry, nil
}
