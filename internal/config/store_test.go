package config

import (
	"os"
	"path/filepath"
	"testing"

	"subtitle-batcher/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.SourceLanguage != domain.SourceLanguageAuto {
		t.Fatalf("sourceLanguage = %q, want auto", cfg.SourceLanguage)
	}
	if cfg.WhisperModelPath == "" {
		t.Fatal("expected non-empty model path")
	}
	if cfg.OutputDir == "" {
		t.Fatal("expected non-empty output dir")
	}
	if cfg.OllamaURL == "" || cfg.TranslationModel == "" {
		t.Fatal("expected translation defaults")
	}
	if cfg.S3.ProjectFolder != "batch-processing" {
		t.Fatalf("projectFolder = %q", cfg.S3.ProjectFolder)
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.SourceLanguage != domain.SourceLanguageAuto {
		t.Fatalf("sourceLanguage = %q, want auto", got.SourceLanguage)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := DefaultSettings()
	want.WhisperModelPath = "/models/base.bin"
	want.OutputDir = "/out"
	want.SourceLanguage = "en"
	want.S3 = domain.S3Settings{
		Enabled:       true,
		Endpoint:      "localhost:9000",
		Region:        "eu-west-1",
		Bucket:        "subs",
		AccessKey:     "a",
		SecretKey:     "s",
		ProjectFolder: "my-project",
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreLoadPartialFileKeepsDefaults checks that fields missing
// from older settings files fall back to defaults.
func TestJSONStoreLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"outputDir":"/custom"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.OutputDir != "/custom" {
		t.Fatalf("outputDir = %q", got.OutputDir)
	}
	if got.TranslationModel != DefaultSettings().TranslationModel {
		t.Fatalf("translationModel = %q, want default", got.TranslationModel)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}
