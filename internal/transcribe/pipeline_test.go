package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"subtitle-batcher/internal/domain"
)

const fakeTranscript = `1
00:00:00,000 --> 00:00:02,000
hello world

2
00:00:02,500 --> 00:00:04,000
second cue
`

// fakeRunner simulates ffmpeg and whisper.cpp by writing their output files.
type fakeRunner struct {
	mu         sync.Mutex
	calls      []recordedCall
	failFFmpeg bool
}

type recordedCall struct {
	name string
	args []string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (commandResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, recordedCall{name: name, args: args})
	r.mu.Unlock()

	switch name {
	case "ffmpeg":
		if r.failFFmpeg {
			return commandResult{ExitCode: 1, Stderr: "invalid data"}, errors.New("exit status 1")
		}
		// Output path is the final argument.
		return commandResult{}, os.WriteFile(args[len(args)-1], []byte("wav"), 0o644)
	case "whisper.cpp":
		base := argValue(args, "-of")
		return commandResult{}, os.WriteFile(base+".srt", []byte(fakeTranscript), 0o644)
	default:
		return commandResult{ExitCode: 127}, errors.New("unknown command")
	}
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (r *fakeRunner) countCalls(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.calls {
		if call.name == name {
			n++
		}
	}
	return n
}

func (r *fakeRunner) lastCall(name string) (recordedCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].name == name {
			return r.calls[i], true
		}
	}
	return recordedCall{}, false
}

// upperTranslator fakes translation by uppercasing and tagging the text.
type upperTranslator struct{}

func (upperTranslator) Translate(_ context.Context, text, _, targetLang string) (string, error) {
	return strings.ToUpper(text) + " [" + targetLang + "]", nil
}

// jsonConverter fakes the OOONA conversion endpoint.
type jsonConverter struct{}

func (jsonConverter) Convert(_ context.Context, _ string) (string, error) {
	return `{"project":"ok"}`, nil
}

func newTestPipeline(t *testing.T, translator Translator, converter OoonaConverter, runner commandRunner) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()

	modelPath := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	mediaPath := filepath.Join(dir, "movie.mp4")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	mkdirTemp := func(_, pattern string) (string, error) {
		return os.MkdirTemp(dir, pattern)
	}
	return NewPipelineForTests(modelPath, translator, converter, runner, mkdirTemp, os.Stat), mediaPath
}

func request(mediaPath, source, target, format string) domain.ProcessRequest {
	return domain.ProcessRequest{
		FilePath:       mediaPath,
		FileName:       filepath.Base(mediaPath),
		SourceLanguage: source,
		TargetLanguage: target,
		OutputFormat:   format,
	}
}

// TestPipelineTranscribe runs the full transcription path to an SRT artifact.
func TestPipelineTranscribe(t *testing.T) {
	runner := &fakeRunner{}
	p, mediaPath := newTestPipeline(t, nil, nil, runner)

	artifact, err := p.Process(context.Background(), request(mediaPath, "en", domain.TargetTranscribe, domain.FormatSRT))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if artifact.FileName != "movie-en.srt" {
		t.Fatalf("fileName = %q", artifact.FileName)
	}
	if artifact.Language != "en" || artifact.Format != domain.FormatSRT {
		t.Fatalf("artifact = %+v", artifact)
	}
	if !strings.Contains(string(artifact.Content), "hello world") {
		t.Fatalf("content = %q", string(artifact.Content))
	}

	whisper, ok := runner.lastCall("whisper.cpp")
	if !ok {
		t.Fatal("whisper.cpp not invoked")
	}
	if argValue(whisper.args, "-l") != "en" {
		t.Fatalf("whisper args = %v, want -l en", whisper.args)
	}
	ffmpeg, _ := runner.lastCall("ffmpeg")
	if argValue(ffmpeg.args, "-ar") != "16000" || argValue(ffmpeg.args, "-ac") != "1" {
		t.Fatalf("ffmpeg args = %v", ffmpeg.args)
	}
}

// TestPipelineAutoLanguage omits the language flag and uses the original
// suffix when auto-detecting.
func TestPipelineAutoLanguage(t *testing.T) {
	runner := &fakeRunner{}
	p, mediaPath := newTestPipeline(t, nil, nil, runner)

	artifact, err := p.Process(context.Background(), request(mediaPath, domain.SourceLanguageAuto, domain.TargetTranscribe, domain.FormatVTT))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if artifact.FileName != "movie-original.vtt" {
		t.Fatalf("fileName = %q", artifact.FileName)
	}

	whisper, _ := runner.lastCall("whisper.cpp")
	if argValue(whisper.args, "-l") != "" {
		t.Fatalf("whisper args = %v, want no -l flag", whisper.args)
	}
}

// TestPipelineTranscriptCache reuses one transcription across pairs.
func TestPipelineTranscriptCache(t *testing.T) {
	runner := &fakeRunner{}
	p, mediaPath := newTestPipeline(t, upperTranslator{}, nil, runner)

	formats := []string{domain.FormatSRT, domain.FormatVTT, domain.FormatTXT}
	for _, format := range formats {
		if _, err := p.Process(context.Background(), request(mediaPath, "en", domain.TargetTranscribe, format)); err != nil {
			t.Fatalf("process %s: %v", format, err)
		}
	}
	if _, err := p.Process(context.Background(), request(mediaPath, "en", "es", domain.FormatSRT)); err != nil {
		t.Fatalf("process translated: %v", err)
	}

	if got := runner.countCalls("whisper.cpp"); got != 1 {
		t.Fatalf("whisper runs = %d, want 1", got)
	}
	if got := runner.countCalls("ffmpeg"); got != 1 {
		t.Fatalf("ffmpeg runs = %d, want 1", got)
	}
}

// TestPipelineTranslation routes cue text through the translator.
func TestPipelineTranslation(t *testing.T) {
	runner := &fakeRunner{}
	p, mediaPath := newTestPipeline(t, upperTranslator{}, nil, runner)

	artifact, err := p.Process(context.Background(), request(mediaPath, "en", "es", domain.FormatTXT))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if artifact.FileName != "movie-es.txt" || artifact.Language != "es" {
		t.Fatalf("artifact = %+v", artifact)
	}
	if !strings.Contains(string(artifact.Content), "HELLO WORLD [es]") {
		t.Fatalf("content = %q", string(artifact.Content))
	}
}

// TestPipelineTranslationUnconfigured fails when a translation is asked
// for without a translator.
func TestPipelineTranslationUnconfigured(t *testing.T) {
	runner := &fakeRunner{}
	p, mediaPath := newTestPipeline(t, nil, nil, runner)

	_, err := p.Process(context.Background(), request(mediaPath, "en", "es", domain.FormatSRT))
	var pipelineErr *PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.Stage != "translating" {
		t.Fatalf("err = %v", err)
	}
}

// TestPipelineOoonaConvert renders SRT and passes it through the converter.
func TestPipelineOoonaConvert(t *testing.T) {
	runner := &fakeRunner{}
	p, mediaPath := newTestPipeline(t, nil, jsonConverter{}, runner)

	artifact, err := p.Process(context.Background(), request(mediaPath, "en", domain.TargetTranscribe, domain.FormatOoona))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if string(artifact.Content) != `{"project":"ok"}` {
		t.Fatalf("content = %q", string(artifact.Content))
	}
	if artifact.FileName != "movie-en.ooona" {
		t.Fatalf("fileName = %q", artifact.FileName)
	}
}

// TestPipelineOoonaUnconfigured fails when the format needs the converter.
func TestPipelineOoonaUnconfigured(t *testing.T) {
	runner := &fakeRunner{}
	p, mediaPath := newTestPipeline(t, nil, nil, runner)

	_, err := p.Process(context.Background(), request(mediaPath, "en", domain.TargetTranscribe, domain.FormatOoona))
	var pipelineErr *PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.Stage != "exporting" {
		t.Fatalf("err = %v", err)
	}
}

// TestPipelineMissingInput fails fast when the media file is absent.
func TestPipelineMissingInput(t *testing.T) {
	runner := &fakeRunner{}
	p, _ := newTestPipeline(t, nil, nil, runner)

	_, err := p.Process(context.Background(), request("/no/such/file.mp4", "en", domain.TargetTranscribe, domain.FormatSRT))
	var pipelineErr *PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.Stage != "preprocessing" {
		t.Fatalf("err = %v", err)
	}
	if runner.countCalls("ffmpeg") != 0 {
		t.Fatal("ffmpeg ran for a missing input")
	}
}

// TestPipelineFFmpegFailure captures the command log on conversion errors.
func TestPipelineFFmpegFailure(t *testing.T) {
	runner := &fakeRunner{failFFmpeg: true}
	p, mediaPath := newTestPipeline(t, nil, nil, runner)

	_, err := p.Process(context.Background(), request(mediaPath, "en", domain.TargetTranscribe, domain.FormatSRT))
	var pipelineErr *PipelineError
	if !errors.As(err, &pipelineErr) {
		t.Fatalf("err = %v", err)
	}
	if pipelineErr.Stage != "preprocessing" || pipelineErr.CommandLog.Command != "ffmpeg" {
		t.Fatalf("pipelineErr = %+v", pipelineErr)
	}
	if pipelineErr.CommandLog.ExitCode != 1 {
		t.Fatalf("exitCode = %d", pipelineErr.CommandLog.ExitCode)
	}
}

// TestPipelineModelDirectory resolves the first model file inside a
// configured model directory.
func TestPipelineModelDirectory(t *testing.T) {
	runner := &fakeRunner{}
	dir := t.TempDir()
	modelsDir := filepath.Join(dir, "models")
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"zz-large.bin", "aa-base.bin", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(modelsDir, name), []byte("m"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mediaPath := filepath.Join(dir, "movie.mp4")
	if err := os.WriteFile(mediaPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	mkdirTemp := func(_, pattern string) (string, error) {
		return os.MkdirTemp(dir, pattern)
	}
	p := NewPipelineForTests(modelsDir, nil, nil, runner, mkdirTemp, os.Stat)

	if _, err := p.Process(context.Background(), request(mediaPath, "en", domain.TargetTranscribe, domain.FormatSRT)); err != nil {
		t.Fatalf("process: %v", err)
	}

	whisper, _ := runner.lastCall("whisper.cpp")
	if got := argValue(whisper.args, "-m"); got != filepath.Join(modelsDir, "aa-base.bin") {
		t.Fatalf("model arg = %q", got)
	}
}
