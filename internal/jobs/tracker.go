package jobs

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subtitle-batcher/internal/domain"
)

// ErrJobNotFound is returned for operations on unknown file IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrAlreadyTerminal is returned when a completed, failed, or cancelled job
// is asked to change state again.
var ErrAlreadyTerminal = errors.New("job already in terminal state")

// ErrInvalidSpec is returned when a submitted job spec fails validation.
var ErrInvalidSpec = errors.New("invalid job spec")

// Patch is a partial update applied atomically to one job record. Nil
// fields are left untouched; AppendResult adds one immutable result entry.
type Patch struct {
	Status       *domain.JobStatus
	Progress     *float64
	CurrentTask  *string
	AppendResult *domain.ResultEntry
	Error        *string
}

// Tracker is the sole authority over the job record collection. Every read
// and write passes through it so the scheduler and observers never race on
// raw state; reads return copied-out snapshots, never shared pointers.
type Tracker struct {
	mu    sync.RWMutex
	byID  map[string]*domain.JobRecord
	order []string
	now   func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byID: make(map[string]*domain.JobRecord),
		now:  time.Now,
	}
}

// NewTrackerForTests creates a tracker with an injectable clock.
func NewTrackerForTests(now func() time.Time) *Tracker {
	t := NewTracker()
	t.now = now
	return t
}

// Add validates the spec, allocates a fresh file ID, and inserts a pending
// record. The job is visible to snapshot reads immediately.
func (t *Tracker) Add(spec domain.JobSpec) (string, error) {
	if err := validateSpec(spec); err != nil {
		return "", err
	}
	if strings.TrimSpace(spec.SourceLanguage) == "" {
		spec.SourceLanguage = domain.SourceLanguageAuto
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.byID[id] = &domain.JobRecord{
		FileID:    id,
		Spec:      spec,
		Status:    domain.JobStatusPending,
		CreatedAt: t.now().UTC(),
	}
	t.order = append(t.order, id)
	return id, nil
}

// Update atomically applies a partial update to the named record. Readers
// observe either the pre- or post-patch state, never a torn mix of fields.
func (t *Tracker) Update(fileID string, patch Patch) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byID[fileID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, fileID)
	}
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, fileID, rec.Status)
	}

	if patch.Status != nil {
		if err := t.applyStatus(rec, *patch.Status); err != nil {
			return err
		}
	}
	if patch.Progress != nil {
		rec.Progress = clampProgress(rec.Progress, *patch.Progress)
	}
	if patch.CurrentTask != nil {
		rec.CurrentTask = *patch.CurrentTask
	}
	if patch.AppendResult != nil {
		rec.Results = append(rec.Results, cloneResult(*patch.AppendResult))
	}
	if patch.Error != nil {
		rec.Error = *patch.Error
	}
	return nil
}

// Cancel moves a pending or processing job to cancelled. For a processing
// job the in-flight work is not interrupted; the scheduler discards its
// result once the external call returns.
func (t *Tracker) Cancel(fileID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byID[fileID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, fileID)
	}
	if rec.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, fileID, rec.Status)
	}

	rec.Status = domain.JobStatusCancelled
	rec.CurrentTask = "cancelled by user"
	rec.FinishedAt = t.now().UTC()
	return nil
}

// Get returns a snapshot of the named record.
func (t *Tracker) Get(fileID string) (domain.JobRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.byID[fileID]
	if !ok {
		return domain.JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, fileID)
	}
	return cloneRecord(rec), nil
}

// All returns snapshots of every record ordered by creation time ascending.
// This ordering is the display contract and the scheduler consumption order.
func (t *Tracker) All() []domain.JobRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.JobRecord, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, cloneRecord(t.byID[id]))
	}
	return out
}

// NextPending returns a snapshot of the oldest pending job, if any.
func (t *Tracker) NextPending() (domain.JobRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, id := range t.order {
		if rec := t.byID[id]; rec.Status == domain.JobStatusPending {
			return cloneRecord(rec), true
		}
	}
	return domain.JobRecord{}, false
}

// Overall computes aggregate batch statistics. Terminal failed and
// cancelled jobs contribute 1.0 to FractionDone.
func (t *Tracker) Overall() domain.BatchStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := domain.BatchStats{Total: len(t.order)}
	if stats.Total == 0 {
		return stats
	}

	sum := 0.0
	for _, id := range t.order {
		rec := t.byID[id]
		switch rec.Status {
		case domain.JobStatusPending:
			stats.Pending++
			sum += rec.Progress
		case domain.JobStatusProcessing:
			stats.Processing++
			sum += rec.Progress
		case domain.JobStatusCompleted:
			stats.Completed++
			sum += 1.0
		case domain.JobStatusFailed:
			stats.Failed++
			sum += 1.0
		case domain.JobStatusCancelled:
			stats.Cancelled++
			sum += 1.0
		}
	}
	stats.FractionDone = sum / float64(stats.Total)
	return stats
}

// ClearCompleted removes every record in a terminal state and returns the
// count removed. Pending and processing jobs are never touched.
func (t *Tracker) ClearCompleted() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.order[:0]
	removed := 0
	for _, id := range t.order {
		if t.byID[id].Status.IsTerminal() {
			delete(t.byID, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
	return removed
}

// applyStatus validates and performs one state machine transition,
// maintaining startedAt/finishedAt and the completed-progress invariant.
func (t *Tracker) applyStatus(rec *domain.JobRecord, to domain.JobStatus) error {
	if to == rec.Status {
		return nil
	}
	if !isValidTransition(rec.Status, to) {
		return fmt.Errorf("invalid transition: %s -> %s", rec.Status, to)
	}

	rec.Status = to
	now := t.now().UTC()
	switch to {
	case domain.JobStatusProcessing:
		if rec.StartedAt.IsZero() {
			rec.StartedAt = now
		}
	case domain.JobStatusCompleted:
		rec.Progress = 1.0
		rec.FinishedAt = now
	case domain.JobStatusFailed, domain.JobStatusCancelled:
		rec.FinishedAt = now
	}
	return nil
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusPending:
		return to == domain.JobStatusProcessing || to == domain.JobStatusCancelled
	case domain.JobStatusProcessing:
		return to == domain.JobStatusCompleted || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	default:
		return false
	}
}

// clampProgress bounds progress to [0,1] and keeps it non-decreasing.
func clampProgress(current, next float64) float64 {
	if next < current {
		return current
	}
	if next > 1.0 {
		return 1.0
	}
	return next
}

// validateSpec rejects specs the engine cannot execute.
func validateSpec(spec domain.JobSpec) error {
	if strings.TrimSpace(spec.FilePath) == "" {
		return fmt.Errorf("%w: file path is required", ErrInvalidSpec)
	}
	if strings.TrimSpace(spec.FileName) == "" {
		return fmt.Errorf("%w: file name is required", ErrInvalidSpec)
	}
	if len(spec.TargetLanguages) == 0 {
		return fmt.Errorf("%w: at least one target language is required", ErrInvalidSpec)
	}
	if len(spec.OutputFormats) == 0 {
		return fmt.Errorf("%w: at least one output format is required", ErrInvalidSpec)
	}
	for _, lang := range spec.TargetLanguages {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("%w: empty target language", ErrInvalidSpec)
		}
	}
	for _, format := range spec.OutputFormats {
		if strings.TrimSpace(format) == "" {
			return fmt.Errorf("%w: empty output format", ErrInvalidSpec)
		}
	}
	return nil
}

// cloneRecord deep-copies a record so callers cannot mutate tracker state.
func cloneRecord(rec *domain.JobRecord) domain.JobRecord {
	out := *rec
	out.Spec.TargetLanguages = append([]string(nil), rec.Spec.TargetLanguages...)
	out.Spec.OutputFormats = append([]string(nil), rec.Spec.OutputFormats...)
	if rec.Results != nil {
		out.Results = make([]domain.ResultEntry, 0, len(rec.Results))
		for i := range rec.Results {
			out.Results = append(out.Results, cloneResult(rec.Results[i]))
		}
	}
	return out
}

// cloneResult deep-copies one result entry.
func cloneResult(entry domain.ResultEntry) domain.ResultEntry {
	out := entry
	out.Locations = append([]domain.StoredLocation(nil), entry.Locations...)
	if entry.SinkErrors != nil {
		out.SinkErrors = append([]string(nil), entry.SinkErrors...)
	}
	return out
}
