// Package batch contains the sequential job scheduler. It drives job
// records from pending to a terminal state one at a time, in creation
// order, while staying responsive to pause and cancel signals issued from
// other goroutines. Pause and stop are cooperative: they take effect at job
// boundaries, never mid-job, because the external processing capability is
// treated as non-preemptible.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"subtitle-batcher/internal/domain"
	"subtitle-batcher/internal/jobs"
)

// ErrAlreadyRunning is returned when Start is called while the scheduler
// loop is already active.
var ErrAlreadyRunning = errors.New("batch processing already running")

// ErrNotConfigured is returned when processing starts before a capability
// has been configured.
var ErrNotConfigured = errors.New("processing capability not configured")

// Capability produces one subtitle artifact for a (language, format) pair.
// Implementations are invoked once per pair and never in parallel.
type Capability interface {
	Process(ctx context.Context, req domain.ProcessRequest) (domain.Artifact, error)
}

// Notifier pushes published events to an attached UI runtime. Notify may
// be invoked while the processor holds its own lock, so implementations
// must not call back into the Processor.
type Notifier interface {
	Notify(event jobs.Event)
}

// Processor is the scheduler. Its loop runs on a single goroutine; control
// methods and tracker reads may be called concurrently from any goroutine.
type Processor struct {
	tracker *jobs.Tracker
	events  *jobs.EventBus
	logger  *slog.Logger

	mu           sync.Mutex
	state        domain.ControlState
	looping      bool
	capability   Capability
	materializer *Materializer
	notifier     Notifier
}

// New creates a stopped processor over the given tracker and event bus.
func New(tracker *jobs.Tracker, events *jobs.EventBus) *Processor {
	return &Processor{
		tracker: tracker,
		events:  events,
		logger:  slog.Default().With("component", "batch"),
		state:   domain.ControlStopped,
	}
}

// Configure installs the processing capability and materializer. While a
// job is in flight the new configuration takes effect from the next job.
func (p *Processor) Configure(capability Capability, materializer *Materializer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capability = capability
	p.materializer = materializer
}

// SetNotifier attaches a push notifier for published events.
func (p *Processor) SetNotifier(n Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = n
}

// AddJob submits one job spec and wakes the scheduler if it is idle while
// the control flag is running. Safe before or after Start.
func (p *Processor) AddJob(spec domain.JobSpec) (string, error) {
	fileID, err := p.tracker.Add(spec)
	if err != nil {
		return "", err
	}

	p.publish(jobs.Event{
		FileID: fileID,
		Type:   jobs.EventTypeStatus,
		Status: domain.JobStatusPending,
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == domain.ControlRunning && !p.looping {
		p.looping = true
		go p.loop()
	}
	return fileID, nil
}

// Start begins draining pending jobs. Returns ErrAlreadyRunning when the
// loop is already active, ErrNotConfigured when no capability is set.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.capability == nil || p.materializer == nil {
		return ErrNotConfigured
	}
	if p.state == domain.ControlRunning && p.looping {
		return ErrAlreadyRunning
	}

	p.state = domain.ControlRunning
	p.publishControlLocked("processing started")
	if !p.looping {
		p.looping = true
		go p.loop()
	}
	return nil
}

// Pause requests a halt at the next job boundary. The in-flight job, if
// any, runs to its own completion; remaining jobs stay pending.
func (p *Processor) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ControlRunning {
		return
	}
	p.state = domain.ControlPauseRequested
	p.publishControlLocked("pause requested")
}

// Resume continues a paused batch from the next pending job. It is a no-op
// unless a pause was requested; after Stop the caller must Start again.
func (p *Processor) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ControlPauseRequested {
		return
	}
	p.state = domain.ControlRunning
	p.publishControlLocked("processing resumed")
	if !p.looping {
		p.looping = true
		go p.loop()
	}
}

// Stop halts the batch at the next job boundary and discards any intent to
// resume automatically. Pending jobs remain pending.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == domain.ControlStopped {
		return
	}
	p.state = domain.ControlStopped
	p.publishControlLocked("processing halted")
}

// State returns the current control flag value.
func (p *Processor) State() domain.ControlState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CancelJob cancels one job. Pending jobs transition immediately; for a
// processing job the transition is recorded now and the in-flight call's
// result is discarded when it returns. Cancelling a terminal job returns
// jobs.ErrAlreadyTerminal.
func (p *Processor) CancelJob(fileID string) error {
	if err := p.tracker.Cancel(fileID); err != nil {
		return err
	}

	p.publish(jobs.Event{
		FileID:  fileID,
		Type:    jobs.EventTypeStatus,
		Status:  domain.JobStatusCancelled,
		Message: "cancelled by user",
	})
	return nil
}

// ClearCompleted removes terminal jobs and returns the count removed.
func (p *Processor) ClearCompleted() int {
	return p.tracker.ClearCompleted()
}

// Job returns a snapshot of one job record.
func (p *Processor) Job(fileID string) (domain.JobRecord, error) {
	return p.tracker.Get(fileID)
}

// Jobs returns snapshots of all job records in creation order.
func (p *Processor) Jobs() []domain.JobRecord {
	return p.tracker.All()
}

// Overall returns aggregate batch statistics.
func (p *Processor) Overall() domain.BatchStats {
	return p.tracker.Overall()
}

// loop drains pending jobs until the queue is empty or the control flag
// leaves running. It holds no locks while a job executes; the flag is
// re-read at every job boundary. The goroutine exits instead of spinning
// when there is nothing to do; AddJob, Start, and Resume respawn it.
func (p *Processor) loop() {
	for {
		p.mu.Lock()
		if p.state != domain.ControlRunning {
			p.looping = false
			p.mu.Unlock()
			return
		}
		rec, ok := p.tracker.NextPending()
		if !ok {
			p.looping = false
			p.mu.Unlock()
			p.logger.Info("batch drained")
			return
		}
		capability := p.capability
		materializer := p.materializer
		p.mu.Unlock()

		p.runJob(rec, capability, materializer)
	}
}

// runJob executes one job's pair loop. Failures are absorbed here and
// recorded on the record; nothing propagates out to terminate the batch.
func (p *Processor) runJob(rec domain.JobRecord, capability Capability, materializer *Materializer) {
	ctx := context.Background()
	fileID := rec.FileID

	if !p.update(fileID, jobs.Patch{
		Status:      ptr(domain.JobStatusProcessing),
		CurrentTask: ptr("initializing"),
	}) {
		// Cancelled while pending.
		return
	}
	p.publish(jobs.Event{
		FileID:      fileID,
		Type:        jobs.EventTypeStatus,
		Status:      domain.JobStatusProcessing,
		CurrentTask: "initializing",
	})
	p.logger.Info("job started", "file_id", fileID, "file", rec.Spec.FileName, "pairs", rec.Spec.PairCount())

	total := rec.Spec.PairCount()
	done := 0
	for _, lang := range rec.Spec.TargetLanguages {
		for _, format := range rec.Spec.OutputFormats {
			task := describeTask(rec.Spec.SourceLanguage, lang, format)
			if !p.update(fileID, jobs.Patch{CurrentTask: ptr(task)}) {
				return
			}
			p.publish(jobs.Event{
				FileID:      fileID,
				Type:        jobs.EventTypeProgress,
				Progress:    float64(done) / float64(total),
				CurrentTask: task,
			})

			artifact, err := capability.Process(ctx, domain.ProcessRequest{
				FilePath:       rec.Spec.FilePath,
				FileName:       rec.Spec.FileName,
				SourceLanguage: rec.Spec.SourceLanguage,
				TargetLanguage: lang,
				OutputFormat:   format,
			})
			if err != nil {
				p.failJob(fileID, fmt.Sprintf("%s: %v", task, err))
				return
			}

			entry, err := materializer.Materialize(ctx, fileID, artifact)
			if err != nil {
				p.failJob(fileID, fmt.Sprintf("store %s: %v", artifact.FileName, err))
				return
			}

			done++
			progress := float64(done) / float64(total)
			if !p.update(fileID, jobs.Patch{
				Progress:     &progress,
				AppendResult: &entry,
			}) {
				// Cancelled mid-job: discard remaining pairs.
				return
			}
			p.publish(jobs.Event{
				FileID:   fileID,
				Type:     jobs.EventTypeResult,
				Progress: progress,
				Result:   &entry,
			})
		}
	}

	if !p.update(fileID, jobs.Patch{
		Status:      ptr(domain.JobStatusCompleted),
		CurrentTask: ptr("completed"),
	}) {
		return
	}
	p.publish(jobs.Event{
		FileID:   fileID,
		Type:     jobs.EventTypeStatus,
		Status:   domain.JobStatusCompleted,
		Progress: 1.0,
	})
	p.logger.Info("job completed", "file_id", fileID, "file", rec.Spec.FileName)
}

// failJob marks one job failed with a diagnostic. A concurrent cancel wins:
// the terminal cancelled state is left untouched.
func (p *Processor) failJob(fileID, message string) {
	if !p.update(fileID, jobs.Patch{
		Status: ptr(domain.JobStatusFailed),
		Error:  &message,
	}) {
		return
	}
	p.publish(jobs.Event{
		FileID:  fileID,
		Type:    jobs.EventTypeError,
		Status:  domain.JobStatusFailed,
		Message: message,
	})
	p.logger.Error("job failed", "file_id", fileID, "error", message)
}

// update applies a patch and reports whether the job is still live. A
// terminal rejection means the job was cancelled underneath the scheduler;
// any other tracker error is an internal invariant violation and fatal.
func (p *Processor) update(fileID string, patch jobs.Patch) bool {
	err := p.tracker.Update(fileID, patch)
	if err == nil {
		return true
	}
	if errors.Is(err, jobs.ErrAlreadyTerminal) {
		p.logger.Info("job cancelled, discarding in-flight work", "file_id", fileID)
		return false
	}
	panic(fmt.Sprintf("tracker corruption: %v", err))
}

// publish stores the event and forwards it to the notifier if attached.
func (p *Processor) publish(event jobs.Event) {
	published := p.events.Publish(event)

	p.mu.Lock()
	notifier := p.notifier
	p.mu.Unlock()
	if notifier != nil {
		notifier.Notify(published)
	}
}

// publishControlLocked publishes a control-flag event; callers hold p.mu.
func (p *Processor) publishControlLocked(message string) {
	published := p.events.Publish(jobs.Event{
		Type:    jobs.EventTypeControl,
		Control: p.state,
		Message: message,
	})
	if p.notifier != nil {
		p.notifier.Notify(published)
	}
}

// describeTask builds the human-readable current-task string for one pair.
func describeTask(source, target, format string) string {
	upper := strings.ToUpper(format)
	if target == domain.TargetTranscribe {
		return fmt.Sprintf("transcribing (%s), rendering %s", source, upper)
	}
	return fmt.Sprintf("translating to %s, rendering %s", target, upper)
}

// ptr returns a pointer to v for building patches.
func ptr[T any](v T) *T {
	return &v
}
