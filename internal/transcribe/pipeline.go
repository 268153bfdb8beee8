// Package transcribe implements the processing capability behind the batch
// engine: ffmpeg preprocessing, whisper.cpp transcription, optional
// translation, and subtitle format rendering, one artifact per
// (target language, output format) pair.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"subtitle-batcher/internal/domain"
	"subtitle-batcher/internal/subtitle"
)

// Translator turns one piece of subtitle text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// OoonaConverter converts SRT content into OOONA project JSON.
type OoonaConverter interface {
	Convert(ctx context.Context, srtContent string) (string, error)
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats pipeline failures for logs and job records.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Options configures the production pipeline.
type Options struct {
	ModelPath  string
	Translator Translator
	Converter  OoonaConverter
}

// Pipeline orchestrates ffmpeg, whisper.cpp, translation, and rendering.
// One transcription pass per input file is cached so every (language,
// format) pair of a job reuses it instead of re-running whisper.
type Pipeline struct {
	ffmpegPath  string
	whisperPath string
	modelPath   string
	translator  Translator
	converter   OoonaConverter
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	readDir     func(name string) ([]os.DirEntry, error)
	readFile    func(name string) ([]byte, error)

	mu    sync.Mutex
	cache map[string][]subtitle.Cue
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		ffmpegPath:  "ffmpeg",
		whisperPath: "whisper.cpp",
		modelPath:   opts.ModelPath,
		translator:  opts.Translator,
		converter:   opts.Converter,
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
		cache:       make(map[string][]subtitle.Cue),
	}
}

// Process produces the artifact for one (target language, format) pair.
func (p *Pipeline) Process(ctx context.Context, req domain.ProcessRequest) (domain.Artifact, error) {
	cues, err := p.transcript(ctx, req.FilePath, req.SourceLanguage)
	if err != nil {
		return domain.Artifact{}, err
	}

	langSuffix := req.SourceLanguage
	if req.TargetLanguage == domain.TargetTranscribe {
		if langSuffix == domain.SourceLanguageAuto {
			langSuffix = "original"
		}
	} else {
		cues, err = p.translateCues(ctx, cues, req.SourceLanguage, req.TargetLanguage)
		if err != nil {
			return domain.Artifact{}, err
		}
		langSuffix = req.TargetLanguage
	}

	content, err := p.render(ctx, cues, req.OutputFormat)
	if err != nil {
		return domain.Artifact{}, err
	}

	return domain.Artifact{
		FileName: subtitle.FileNameFor(req.FileName, langSuffix, req.OutputFormat),
		Format:   req.OutputFormat,
		Language: langSuffix,
		Content:  content,
	}, nil
}

// transcript returns cached cues for the file or runs the transcription
// stages: ffmpeg audio conversion, then whisper.cpp SRT export.
func (p *Pipeline) transcript(ctx context.Context, filePath, sourceLang string) ([]subtitle.Cue, error) {
	key := filePath + "|" + sourceLang
	p.mu.Lock()
	cached, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	if strings.TrimSpace(filePath) == "" {
		return nil, &PipelineError{
			Stage:   "preprocessing",
			Message: "input media path is required",
		}
	}
	if _, err := p.stat(filePath); err != nil {
		return nil, &PipelineError{
			Stage:   "preprocessing",
			Message: fmt.Sprintf("cannot access input media: %s", filePath),
			Err:     err,
		}
	}

	modelPath, err := p.resolveModelPath()
	if err != nil {
		return nil, &PipelineError{
			Stage:   "transcribing",
			Message: err.Error(),
			Err:     err,
		}
	}

	tempDir, err := p.mkdirTemp("", "subtitle-batcher-*")
	if err != nil {
		return nil, &PipelineError{
			Stage:   "preprocessing",
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() {
		_ = p.removeAll(tempDir)
	}()

	wavPath := filepath.Join(tempDir, "preprocessed-16k-mono.wav")
	args := buildFFmpegArgs(filePath, wavPath)
	cmdResult, runErr := p.runner.Run(ctx, p.ffmpegPath, args...)
	if runErr != nil {
		return nil, &PipelineError{
			Stage:   "preprocessing",
			Message: "ffmpeg audio conversion failed",
			CommandLog: CommandLog{
				Command:  p.ffmpegPath,
				Args:     args,
				ExitCode: cmdResult.ExitCode,
				Stdout:   cmdResult.Stdout,
				Stderr:   cmdResult.Stderr,
			},
			Err: runErr,
		}
	}
	if _, err := p.stat(wavPath); err != nil {
		return nil, &PipelineError{
			Stage:   "preprocessing",
			Message: "ffmpeg completed but output file is missing",
			Err:     err,
		}
	}

	srtBase := filepath.Join(tempDir, "transcript")
	whisperArgs := buildWhisperArgs(modelPath, wavPath, srtBase, sourceLang)
	whisperResult, runErr := p.runner.Run(ctx, p.whisperPath, whisperArgs...)
	if runErr != nil {
		return nil, &PipelineError{
			Stage:   "transcribing",
			Message: "whisper.cpp transcription failed",
			CommandLog: CommandLog{
				Command:  p.whisperPath,
				Args:     whisperArgs,
				ExitCode: whisperResult.ExitCode,
				Stdout:   whisperResult.Stdout,
				Stderr:   whisperResult.Stderr,
			},
			Err: runErr,
		}
	}

	srtPath := srtBase + ".srt"
	content, err := p.readFile(srtPath)
	if err != nil {
		return nil, &PipelineError{
			Stage:   "transcribing",
			Message: "whisper.cpp completed but transcript .srt file is missing",
			Err:     err,
		}
	}

	cues, err := subtitle.ParseSRT(string(content))
	if err != nil {
		return nil, &PipelineError{
			Stage:   "transcribing",
			Message: fmt.Sprintf("parse whisper output: %v", err),
			Err:     err,
		}
	}

	p.mu.Lock()
	p.cache[key] = cues
	p.mu.Unlock()
	return cues, nil
}

// translateCues translates every cue text, preserving timing.
func (p *Pipeline) translateCues(ctx context.Context, cues []subtitle.Cue, sourceLang, targetLang string) ([]subtitle.Cue, error) {
	if p.translator == nil {
		return nil, &PipelineError{
			Stage:   "translating",
			Message: "translation requested but no translator is configured",
		}
	}

	out := make([]subtitle.Cue, len(cues))
	for i, cue := range cues {
		translated, err := p.translator.Translate(ctx, cue.Text, sourceLang, targetLang)
		if err != nil {
			return nil, &PipelineError{
				Stage:   "translating",
				Message: fmt.Sprintf("translate cue %d to %s: %v", i+1, targetLang, err),
				Err:     err,
			}
		}
		out[i] = cue
		out[i].Text = translated
	}
	return out, nil
}

// render serializes cues into the output format. The OOONA format is
// rendered as SRT and sent through the external converter.
func (p *Pipeline) render(ctx context.Context, cues []subtitle.Cue, format string) ([]byte, error) {
	if format != domain.FormatOoona {
		content, err := subtitle.Render(cues, format)
		if err != nil {
			return nil, &PipelineError{
				Stage:   "exporting",
				Message: err.Error(),
				Err:     err,
			}
		}
		return content, nil
	}

	if p.converter == nil {
		return nil, &PipelineError{
			Stage:   "exporting",
			Message: "ooona format requested but the converter is not configured",
		}
	}

	srtContent, err := subtitle.Render(cues, domain.FormatSRT)
	if err != nil {
		return nil, &PipelineError{
			Stage:   "exporting",
			Message: err.Error(),
			Err:     err,
		}
	}

	converted, err := p.converter.Convert(ctx, string(srtContent))
	if err != nil {
		return nil, &PipelineError{
			Stage:   "exporting",
			Message: fmt.Sprintf("ooona conversion failed: %v", err),
			Err:     err,
		}
	}
	return []byte(converted), nil
}

// resolveModelPath returns model file path from file or directory input.
func (p *Pipeline) resolveModelPath() (string, error) {
	modelPath := strings.TrimSpace(p.modelPath)
	if modelPath == "" {
		return "", fmt.Errorf("whisper model path is required")
	}

	info, err := p.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := p.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, domain.SourceLanguageAuto) {
		return ""
	}
	return lang
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for SRT transcript export.
func buildWhisperArgs(modelPath, audioPath, srtBase, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", srtBase,
		"-osrt",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	modelPath string,
	translator Translator,
	converter OoonaConverter,
	runner commandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	stat func(name string) (os.FileInfo, error),
) *Pipeline {
	return &Pipeline{
		ffmpegPath:  "ffmpeg",
		whisperPath: "whisper.cpp",
		modelPath:   modelPath,
		translator:  translator,
		converter:   converter,
		runner:      runner,
		mkdirTemp:   mkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
		cache:       make(map[string][]subtitle.Cue),
	}
}
