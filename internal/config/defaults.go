package config

import (
	"os"
	"path/filepath"

	"subtitle-batcher/internal/domain"
	"subtitle-batcher/internal/translate"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		OutputDir:        filepath.Join(homeDir, "Documents", "Subtitles"),
		WhisperModelPath: filepath.Join(homeDir, ".subtitle-batcher", "models"),
		SourceLanguage:   domain.SourceLanguageAuto,
		OllamaURL:        translate.DefaultBaseURL,
		TranslationModel: translate.DefaultModel,
		S3: domain.S3Settings{
			Region:        "us-east-1",
			ProjectFolder: "batch-processing",
		},
	}
}

// SettingsPath returns the on-disk location of the settings file.
func SettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".subtitle-batcher", "settings.json")
}
