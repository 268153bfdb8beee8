package domain

import "time"

// JobStatus tracks the lifecycle state of one batch job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// SourceLanguageAuto requests language auto-detection during transcription.
const SourceLanguageAuto = "auto"

// TargetTranscribe is the sentinel target language for a source-language
// transcription pass without translation.
const TargetTranscribe = "transcribe"

// JobSpec is the caller-supplied description of one unit of work: one input
// file processed into some combination of target languages and output
// formats. It is immutable once accepted by the tracker.
type JobSpec struct {
	FilePath        string   `json:"filePath"`
	FileName        string   `json:"fileName"`
	FileSize        int64    `json:"fileSize"`
	SourceLanguage  string   `json:"sourceLanguage"`
	TargetLanguages []string `json:"targetLanguages"`
	OutputFormats   []string `json:"outputFormats"`
}

// PairCount returns the number of (target language, output format) pairs,
// the unit of progress granularity.
func (s JobSpec) PairCount() int {
	return len(s.TargetLanguages) * len(s.OutputFormats)
}

// StoredLocation identifies where one sink placed an artifact.
type StoredLocation struct {
	Sink string `json:"sink"`
	Path string `json:"path"`
}

// ResultEntry describes one produced artifact. Entries are immutable once
// appended to a job record.
type ResultEntry struct {
	FileName   string           `json:"fileName"`
	Format     string           `json:"format"`
	Language   string           `json:"language"`
	Size       int64            `json:"size"`
	Locations  []StoredLocation `json:"locations"`
	SinkErrors []string         `json:"sinkErrors,omitempty"`
}

// JobRecord bundles a job's identity, immutable spec, and mutable state.
// Records are owned exclusively by the progress tracker; callers only ever
// see copied-out snapshots.
type JobRecord struct {
	FileID      string        `json:"fileId"`
	Spec        JobSpec       `json:"spec"`
	Status      JobStatus     `json:"status"`
	Progress    float64       `json:"progress"`
	CurrentTask string        `json:"currentTask"`
	Results     []ResultEntry `json:"results"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
}

// BatchStats aggregates tracker state for the outer progress bar.
// FractionDone is the mean per-job progress with terminal failed and
// cancelled jobs counted as 1.0: they are no longer outstanding.
type BatchStats struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Processing   int     `json:"processing"`
	Completed    int     `json:"completed"`
	Failed       int     `json:"failed"`
	Cancelled    int     `json:"cancelled"`
	FractionDone float64 `json:"fractionDone"`
}

// ControlState governs whether the scheduler starts new jobs.
type ControlState string

const (
	ControlRunning        ControlState = "running"
	ControlPauseRequested ControlState = "pause_requested"
	ControlStopped        ControlState = "stopped"
)

// ProcessRequest is the per-pair input handed to the processing capability.
type ProcessRequest struct {
	FilePath       string `json:"filePath"`
	FileName       string `json:"fileName"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	OutputFormat   string `json:"outputFormat"`
}

// Artifact is one rendered subtitle output produced by the capability.
type Artifact struct {
	FileName string `json:"fileName"`
	Format   string `json:"format"`
	Language string `json:"language"`
	Content  []byte `json:"-"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	OutputDir        string        `json:"outputDir"`
	WhisperModelPath string        `json:"whisperModelPath"`
	SourceLanguage   string        `json:"sourceLanguage"`
	OllamaURL        string        `json:"ollamaUrl"`
	TranslationModel string        `json:"translationModel"`
	S3               S3Settings    `json:"s3"`
	Ooona            OoonaSettings `json:"ooona"`
}

// S3Settings configures the optional object storage sink.
type S3Settings struct {
	Enabled       bool   `json:"enabled"`
	Endpoint      string `json:"endpoint"`
	Region        string `json:"region"`
	Bucket        string `json:"bucket"`
	AccessKey     string `json:"accessKey"`
	SecretKey     string `json:"secretKey"`
	UseSSL        bool   `json:"useSsl"`
	ProjectFolder string `json:"projectFolder"`
}

// OoonaSettings configures the optional OOONA format-conversion API.
type OoonaSettings struct {
	Enabled      bool   `json:"enabled"`
	BaseURL      string `json:"baseUrl"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	APIKey       string `json:"apiKey"`
	APIName      string `json:"apiName"`
}
