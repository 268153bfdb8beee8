package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"subtitle-batcher/internal/domain"
)

// TestLocalSinkStore writes the artifact under a per-job directory.
func TestLocalSinkStore(t *testing.T) {
	root := t.TempDir()
	sink, err := NewLocalSink(root)
	require.NoError(t, err)
	require.Equal(t, "local", sink.Name())

	artifact := domain.Artifact{
		FileName: "movie-es.srt",
		Format:   domain.FormatSRT,
		Language: "es",
		Content:  []byte("1\n00:00:00,000 --> 00:00:01,000\nhola\n\n"),
	}

	location, err := sink.Store(context.Background(), "job-42", artifact)
	require.NoError(t, err)
	require.Equal(t, "local", location.Sink)
	require.Equal(t, filepath.Join(root, "job-42", "movie-es.srt"), location.Path)

	data, err := os.ReadFile(location.Path)
	require.NoError(t, err)
	require.Equal(t, artifact.Content, data)
}

// TestLocalSinkJobIsolation keeps artifacts from different jobs apart.
func TestLocalSinkJobIsolation(t *testing.T) {
	root := t.TempDir()
	sink, err := NewLocalSink(root)
	require.NoError(t, err)

	artifact := domain.Artifact{FileName: "same-name.srt", Format: domain.FormatSRT, Content: []byte("a")}

	first, err := sink.Store(context.Background(), "job-1", artifact)
	require.NoError(t, err)
	artifact.Content = []byte("b")
	second, err := sink.Store(context.Background(), "job-2", artifact)
	require.NoError(t, err)

	require.NotEqual(t, first.Path, second.Path)
	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), data)
}

// TestNewLocalSinkRequiresDir rejects an empty output directory.
func TestNewLocalSinkRequiresDir(t *testing.T) {
	_, err := NewLocalSink("  ")
	require.Error(t, err)
}

// TestNewS3SinkValidation lists missing object storage settings.
func TestNewS3SinkValidation(t *testing.T) {
	_, err := NewS3Sink(domain.S3Settings{Enabled: true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "endpoint")
	require.Contains(t, err.Error(), "bucket")
	require.Contains(t, err.Error(), "access key")
	require.Contains(t, err.Error(), "secret key")
}

// TestNewS3SinkDefaultsFolder applies the default project folder.
func TestNewS3SinkDefaultsFolder(t *testing.T) {
	sink, err := NewS3Sink(domain.S3Settings{
		Enabled:   true,
		Endpoint:  "localhost:9000",
		Bucket:    "subtitles",
		AccessKey: "access",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	require.Equal(t, "s3", sink.Name())
	require.Equal(t, "batch-processing", sink.projectFolder)
}
