// Package bootstrap assembles the application: persisted settings, startup
// diagnostics, the batch engine with its processing capability and output
// sinks, and the desktop UI bindings.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"subtitle-batcher/internal/batch"
	"subtitle-batcher/internal/config"
	"subtitle-batcher/internal/diagnostics"
	"subtitle-batcher/internal/domain"
	"subtitle-batcher/internal/jobs"
	"subtitle-batcher/internal/ooona"
	"subtitle-batcher/internal/storage"
	"subtitle-batcher/internal/transcribe"
	"subtitle-batcher/internal/translate"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var modelDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Whisper models",
		Pattern:     "*.bin;*.gguf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the batch engine, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Engine      *batch.Processor
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	events      *jobs.EventBus

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(config.SettingsPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker(translate.New(settings.OllamaURL, settings.TranslationModel))
	report := checker.Run(context.Background(), settings)

	events := jobs.NewEventBus(1000)
	engine := batch.New(jobs.NewTracker(), events)

	app := &App{
		Settings:    settings,
		Store:       store,
		Engine:      engine,
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		events:      events,
	}
	engine.SetNotifier(app)

	if err := app.configureEngine(settings); err != nil {
		return nil, fmt.Errorf("configure engine: %w", err)
	}
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Subtitle Batcher",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.Engine.Stop()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Notify forwards a batch event to the UI when the runtime is attached.
func (a *App) Notify(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "batch:event", event)
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	report := a.checker.Run(context.Background(), settings)

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = report
	a.mu.Unlock()
	return report, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, rebuilds the engine's
// capability and sinks, and refreshes diagnostics. A job already in flight
// finishes under the old configuration.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	if err := a.configureEngine(normalized); err != nil {
		return domain.Settings{}, err
	}

	checker := diagnostics.NewChecker(translate.New(normalized.OllamaURL, normalized.TranslationModel))
	report := checker.Run(context.Background(), normalized)

	a.mu.Lock()
	a.Settings = normalized
	a.checker = checker
	a.Diagnostics = report
	a.mu.Unlock()

	return normalized, nil
}

// AddJob fills in derivable spec fields and submits the job.
func (a *App) AddJob(spec domain.JobSpec) (string, error) {
	spec.FilePath = strings.TrimSpace(spec.FilePath)
	if spec.FileName == "" {
		spec.FileName = filepath.Base(spec.FilePath)
	}
	if spec.SourceLanguage == "" {
		a.mu.Lock()
		spec.SourceLanguage = a.Settings.SourceLanguage
		a.mu.Unlock()
	}
	if spec.FileSize == 0 {
		if info, err := os.Stat(spec.FilePath); err == nil {
			spec.FileSize = info.Size()
		}
	}

	return a.Engine.AddJob(spec)
}

// StartProcessing begins draining pending jobs.
func (a *App) StartProcessing() error {
	return a.Engine.Start()
}

// PauseProcessing requests a halt at the next job boundary.
func (a *App) PauseProcessing() {
	a.Engine.Pause()
}

// ResumeProcessing continues a paused batch.
func (a *App) ResumeProcessing() {
	a.Engine.Resume()
}

// StopProcessing halts the batch; pending jobs stay pending.
func (a *App) StopProcessing() {
	a.Engine.Stop()
}

// ControlState returns the scheduler's current control flag.
func (a *App) ControlState() domain.ControlState {
	return a.Engine.State()
}

// CancelJob cancels one job by file ID.
func (a *App) CancelJob(fileID string) error {
	return a.Engine.CancelJob(fileID)
}

// ClearCompleted removes terminal jobs and returns the count removed.
func (a *App) ClearCompleted() int {
	return a.Engine.ClearCompleted()
}

// GetJob returns a snapshot of one job record.
func (a *App) GetJob(fileID string) (domain.JobRecord, error) {
	return a.Engine.Job(fileID)
}

// GetAllJobs returns snapshots of all job records in creation order.
func (a *App) GetAllJobs() []domain.JobRecord {
	return a.Engine.Jobs()
}

// GetOverallProgress returns aggregate batch statistics.
func (a *App) GetOverallProgress() domain.BatchStats {
	return a.Engine.Overall()
}

// BatchEvents returns all events with sequence greater than sinceSeq.
func (a *App) BatchEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// OutputFormats lists the selectable subtitle output formats.
func (a *App) OutputFormats() []domain.OutputFormat {
	return domain.OutputFormats()
}

// TranslationLanguages lists the selectable target language codes.
func (a *App) TranslationLanguages() []string {
	return domain.TranslationLanguages()
}

// PickMediaFiles opens a native multi-select dialog for media files.
func (a *App) PickMediaFiles() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media files",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

// PickModelFile opens a native file dialog for whisper model selection.
func (a *App) PickModelFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select whisper model",
		Filters: modelDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select model directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for subtitle exports.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in the
// platform file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// configureEngine installs the processing capability and sinks derived
// from the given settings.
func (a *App) configureEngine(settings domain.Settings) error {
	capability, err := buildCapability(settings)
	if err != nil {
		return err
	}
	materializer, err := buildMaterializer(settings)
	if err != nil {
		return err
	}

	a.Engine.Configure(capability, materializer)
	return nil
}

// buildCapability constructs the transcription pipeline with the optional
// translation and OOONA integrations.
func buildCapability(settings domain.Settings) (batch.Capability, error) {
	opts := transcribe.Options{
		ModelPath:  settings.WhisperModelPath,
		Translator: translate.New(settings.OllamaURL, settings.TranslationModel),
	}

	if settings.Ooona.Enabled {
		converter, err := ooona.New(settings.Ooona)
		if err != nil {
			return nil, err
		}
		opts.Converter = converter
	}

	return transcribe.NewPipeline(opts), nil
}

// buildMaterializer constructs the output sinks: always the local
// directory, plus object storage when enabled.
func buildMaterializer(settings domain.Settings) (*batch.Materializer, error) {
	local, err := storage.NewLocalSink(settings.OutputDir)
	if err != nil {
		return nil, err
	}
	sinks := []storage.Sink{local}

	if settings.S3.Enabled {
		s3, err := storage.NewS3Sink(settings.S3)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3)
	}

	return batch.NewMaterializer(sinks...), nil
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies defaults for empty fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.WhisperModelPath = strings.TrimSpace(settings.WhisperModelPath)
	settings.SourceLanguage = strings.TrimSpace(settings.SourceLanguage)
	if settings.SourceLanguage == "" {
		settings.SourceLanguage = domain.SourceLanguageAuto
	}
	settings.OllamaURL = strings.TrimSpace(settings.OllamaURL)
	if settings.OllamaURL == "" {
		settings.OllamaURL = translate.DefaultBaseURL
	}
	settings.TranslationModel = strings.TrimSpace(settings.TranslationModel)
	if settings.TranslationModel == "" {
		settings.TranslationModel = translate.DefaultModel
	}
	settings.S3.Endpoint = strings.TrimSpace(settings.S3.Endpoint)
	settings.S3.Bucket = strings.TrimSpace(settings.S3.Bucket)
	settings.Ooona.BaseURL = strings.TrimSpace(settings.Ooona.BaseURL)
	return settings
}

// ensureLocalBinOnPATH prepends the app's private tool directory to PATH so
// bundled ffmpeg and whisper.cpp builds are found before system copies.
func ensureLocalBinOnPATH(homeDir string) error {
	binDir := filepath.Join(homeDir, ".subtitle-batcher", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
