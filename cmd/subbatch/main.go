// subbatch is the headless companion to the desktop app. It runs a batch
// of media files through the same engine and prints a per-job summary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"subtitle-batcher/internal/batch"
	"subtitle-batcher/internal/config"
	"subtitle-batcher/internal/diagnostics"
	"subtitle-batcher/internal/domain"
	"subtitle-batcher/internal/jobs"
	"subtitle-batcher/internal/ooona"
	"subtitle-batcher/internal/storage"
	"subtitle-batcher/internal/transcribe"
	"subtitle-batcher/internal/translate"
)

type runFlags struct {
	languages        []string
	formats          []string
	outputDir        string
	sourceLanguage   string
	modelPath        string
	ollamaURL        string
	translationModel string
	verbose          bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "subbatch",
		Short:         "Batch subtitle generation from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newFormatsCmd())
	root.AddCommand(newCheckCmd())
	return root
}

func newRunCmd() *cobra.Command {
	flags := runFlags{}

	cmd := &cobra.Command{
		Use:   "run [media files...]",
		Short: "Transcribe and translate media files into subtitle outputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, flags)
		},
	}

	settings, err := config.NewJSONStore(config.SettingsPath()).Load()
	if err != nil {
		settings = config.DefaultSettings()
	}

	cmd.Flags().StringSliceVarP(&flags.languages, "lang", "l", []string{domain.TargetTranscribe},
		"target languages; 'transcribe' keeps the source language")
	cmd.Flags().StringSliceVarP(&flags.formats, "format", "f", []string{domain.FormatSRT},
		"output formats (srt, vtt, txt, json, ooona)")
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", settings.OutputDir, "output directory")
	cmd.Flags().StringVarP(&flags.sourceLanguage, "source", "s", settings.SourceLanguage,
		"source language code, or 'auto'")
	cmd.Flags().StringVarP(&flags.modelPath, "model", "m", settings.WhisperModelPath,
		"whisper model file or directory")
	cmd.Flags().StringVar(&flags.ollamaURL, "ollama", settings.OllamaURL, "Ollama base URL")
	cmd.Flags().StringVar(&flags.translationModel, "translation-model", settings.TranslationModel,
		"Ollama model used for translation")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

// runBatch drives the engine to completion over the given files.
func runBatch(cmd *cobra.Command, files []string, flags runFlags) error {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	settings, err := config.NewJSONStore(config.SettingsPath()).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings.OutputDir = flags.outputDir
	settings.WhisperModelPath = flags.modelPath
	settings.SourceLanguage = flags.sourceLanguage
	settings.OllamaURL = flags.ollamaURL
	settings.TranslationModel = flags.translationModel

	engine := batch.New(jobs.NewTracker(), jobs.NewEventBus(1000))
	if err := configureEngine(engine, settings); err != nil {
		return err
	}

	for _, file := range files {
		spec := domain.JobSpec{
			FilePath:        file,
			FileName:        file,
			SourceLanguage:  settings.SourceLanguage,
			TargetLanguages: flags.languages,
			OutputFormats:   flags.formats,
		}
		if info, statErr := os.Stat(file); statErr == nil {
			spec.FileSize = info.Size()
		}

		if _, err := engine.AddJob(spec); err != nil {
			return fmt.Errorf("add %s: %w", file, err)
		}
	}

	if err := engine.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		stats := engine.Overall()
		if stats.Pending == 0 && stats.Processing == 0 {
			break
		}
	}

	failed := printSummary(cmd, engine.Jobs())
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(files))
	}
	return nil
}

// printSummary writes one line per job and returns the failure count.
func printSummary(cmd *cobra.Command, records []domain.JobRecord) int {
	out := cmd.OutOrStdout()
	failed := 0
	for _, rec := range records {
		switch rec.Status {
		case domain.JobStatusCompleted:
			fmt.Fprintf(out, "ok    %s (%d outputs)\n", rec.Spec.FileName, len(rec.Results))
			for _, result := range rec.Results {
				for _, loc := range result.Locations {
					fmt.Fprintf(out, "      %s\n", loc.Path)
				}
			}
		case domain.JobStatusFailed:
			failed++
			fmt.Fprintf(out, "fail  %s: %s\n", rec.Spec.FileName, rec.Error)
		default:
			fmt.Fprintf(out, "%-5s %s\n", rec.Status, rec.Spec.FileName)
		}
	}
	return failed
}

// configureEngine mirrors the desktop app's capability and sink wiring.
func configureEngine(engine *batch.Processor, settings domain.Settings) error {
	opts := transcribe.Options{
		ModelPath:  settings.WhisperModelPath,
		Translator: translate.New(settings.OllamaURL, settings.TranslationModel),
	}
	if settings.Ooona.Enabled {
		converter, err := ooona.New(settings.Ooona)
		if err != nil {
			return err
		}
		opts.Converter = converter
	}

	local, err := storage.NewLocalSink(settings.OutputDir)
	if err != nil {
		return err
	}
	sinks := []storage.Sink{local}
	if settings.S3.Enabled {
		s3, err := storage.NewS3Sink(settings.S3)
		if err != nil {
			return err
		}
		sinks = append(sinks, s3)
	}

	engine.Configure(transcribe.NewPipeline(opts), batch.NewMaterializer(sinks...))
	return nil
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported output formats and target languages",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Output formats:")
			for _, format := range domain.OutputFormats() {
				note := ""
				if format.NeedsOoona {
					note = " (requires OOONA credentials)"
				}
				fmt.Fprintf(out, "  %-6s %s%s\n", format.ID, format.Name, note)
			}
			fmt.Fprintln(out, "\nTarget languages:")
			for _, lang := range domain.TranslationLanguages() {
				fmt.Fprintf(out, "  %s\n", lang)
			}
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run environment diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.NewJSONStore(config.SettingsPath()).Load()
			if err != nil {
				return fmt.Errorf("load settings: %w", err)
			}

			checker := diagnostics.NewChecker(translate.New(settings.OllamaURL, settings.TranslationModel))
			report := checker.Run(context.Background(), settings)

			out := cmd.OutOrStdout()
			for _, item := range report.Items {
				fmt.Fprintf(out, "%-4s %s: %s\n", item.Status, item.Name, item.Message)
				if item.Hint != "" {
					fmt.Fprintf(out, "     hint: %s\n", item.Hint)
				}
			}
			if report.HasFailures {
				return fmt.Errorf("environment checks failed")
			}
			return nil
		},
	}
}
