package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"subtitle-batcher/internal/domain"
)

// S3Sink uploads artifacts to an S3-compatible bucket under a per-project
// folder, mirroring the key layout <project>/<jobID>/<fileName>.
type S3Sink struct {
	client        *minio.Client
	bucket        string
	projectFolder string
}

// NewS3Sink validates the settings and constructs the object storage client.
func NewS3Sink(cfg domain.S3Settings) (*S3Sink, error) {
	var missing []string
	if strings.TrimSpace(cfg.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" {
		missing = append(missing, "access key")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		missing = append(missing, "secret key")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("s3 sink: missing required settings: %s", strings.Join(missing, ", "))
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 sink: create client: %w", err)
	}

	folder := strings.Trim(cfg.ProjectFolder, "/")
	if folder == "" {
		folder = "batch-processing"
	}

	return &S3Sink{client: client, bucket: cfg.Bucket, projectFolder: folder}, nil
}

// Name identifies the sink in result entries and logs.
func (s *S3Sink) Name() string {
	return "s3"
}

// Store uploads the artifact and returns its object URL.
func (s *S3Sink) Store(ctx context.Context, jobID string, artifact domain.Artifact) (domain.StoredLocation, error) {
	key := path.Join(s.projectFolder, jobID, artifact.FileName)

	contentType := "application/octet-stream"
	if format, ok := domain.FormatByID(artifact.Format); ok {
		contentType = format.ContentType
	}

	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(artifact.Content), int64(len(artifact.Content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return domain.StoredLocation{}, fmt.Errorf("upload %s: %w", key, err)
	}

	return domain.StoredLocation{
		Sink: s.Name(),
		Path: fmt.Sprintf("s3://%s/%s", s.bucket, key),
	}, nil
}
