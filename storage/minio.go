package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
)

// ArtifactStore wraps a MinIO client for training datasets and model
// artifacts. Datasets are uploaded by the frontend before submission;
// model artifacts are written by the worker under a per-job prefix.
type ArtifactStore struct {
	client *minio.Client
	bucket string
}

// ArtifactInfo describes one stored object.
type ArtifactInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// NewArtifactStore creates an artifact store on the given bucket.
func NewArtifactStore(client *minio.Client, bucket string) *ArtifactStore {
	return &ArtifactStore{
		client: client,
		bucket: bucket,
	}
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArtifactStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		log.Printf("Creating bucket: %s", s.bucket)
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// UploadDataset uploads a training dataset file
func (s *ArtifactStore) UploadDataset(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	if err := s.EnsureBucket(ctx); err != nil {
		return minio.UploadInfo{}, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return minio.UploadInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return info, nil
}

// ListJobArtifacts lists the objects the worker wrote for a job. The
// worker keys model artifacts as <jobID>/<file>.
func (s *ArtifactStore) ListJobArtifacts(ctx context.Context, jobID string) ([]ArtifactInfo, error) {
	var artifacts []ArtifactInfo

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    jobID + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list artifacts: %w", obj.Err)
		}
		artifacts = append(artifacts, ArtifactInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return artifacts, nil
}
