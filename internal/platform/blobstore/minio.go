package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for a MinIO (or S3-compatible) backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioBlobStore implements BlobStore backed by a MinIO bucket. Object names
// are "<job_id>/<blob_id>" so blobs of one analysis share a prefix; blobs
// without a job land under "unassigned/". Descriptive fields travel as object
// user metadata.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore creates a MinIO-backed blob store.
func NewMinioBlobStore(cfg MinioConfig) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioBlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinioBlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}

	return nil
}

func objectName(jobID, blobID string) string {
	if jobID == "" {
		jobID = "unassigned"
	}
	return jobID + "/" + blobID
}

// Upload validates inputs, buffers the content to compute size and hash, and
// stores the object in the bucket.
func (s *MinioBlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	if meta.FileName == "" {
		return nil, ErrMissingFileName
	}
	if meta.ContentType != "" && !AllowedContentTypes[meta.ContentType] {
		return nil, ErrInvalidContentType
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	blobID := uuid.New().String()
	meta.ID = objectName(meta.JobID, blobID)
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = time.Now().UTC()

	_, err = s.client.PutObject(ctx, s.bucket, meta.ID, bytes.NewReader(data), meta.Size, minio.PutObjectOptions{
		ContentType: meta.ContentType,
		UserMetadata: map[string]string{
			"file-name":  meta.FileName,
			"job-id":     meta.JobID,
			"category":   meta.Category,
			"hash":       meta.Hash,
			"created-by": meta.CreatedBy,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload object: %w", err)
	}

	out := meta
	return &out, nil
}

// Download returns the object content and its metadata.
func (s *MinioBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get object: %w", err)
	}

	return obj, meta, nil
}

// Delete removes an object by ID.
func (s *MinioBlobStore) Delete(ctx context.Context, id string) error {
	// StatObject first so missing blobs surface as ErrBlobNotFound rather
	// than a silent no-op remove.
	if _, err := s.GetMetadata(ctx, id); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// GetMetadata returns object metadata without content.
func (s *MinioBlobStore) GetMetadata(ctx context.Context, id string) (*BlobMetadata, error) {
	info, err := s.client.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}

	return metadataFromObjectInfo(id, info), nil
}

// ListByJob returns blobs stored under a job's prefix, optionally filtered by
// category.
func (s *MinioBlobStore) ListByJob(ctx context.Context, jobID, category string, limit, offset int) ([]*BlobMetadata, int, error) {
	prefix := jobID + "/"
	if jobID == "" {
		prefix = "unassigned/"
	}

	var matched []*BlobMetadata
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}) {
		if info.Err != nil {
			return nil, 0, fmt.Errorf("list objects: %w", info.Err)
		}
		m := metadataFromObjectInfo(info.Key, info)
		if category != "" && m.Category != category {
			continue
		}
		matched = append(matched, m)
	}

	total := len(matched)
	if limit <= 0 {
		limit = 20
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], total, nil
}

// PresignedURL returns a time-limited direct download URL for an object.
func (s *MinioBlobStore) PresignedURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, id, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

func metadataFromObjectInfo(id string, info minio.ObjectInfo) *BlobMetadata {
	meta := &BlobMetadata{
		ID:          id,
		ContentType: info.ContentType,
		Size:        info.Size,
		CreatedAt:   info.LastModified,
	}

	get := func(key string) string {
		if v := info.UserMetadata["X-Amz-Meta-"+key]; v != "" {
			return v
		}
		return info.UserMetadata[key]
	}

	meta.FileName = get("File-Name")
	meta.JobID = get("Job-Id")
	meta.Category = get("Category")
	meta.Hash = get("Hash")
	meta.CreatedBy = get("Created-By")

	if meta.FileName == "" {
		meta.FileName = path.Base(id)
	}
	if meta.JobID == "" {
		meta.JobID, _ = splitObjectName(id)
	}

	return meta
}

func splitObjectName(id string) (jobID, blobID string) {
	dir, base := path.Split(id)
	jobID = ""
	if len(dir) > 0 {
		jobID = dir[:len(dir)-1]
	}
	if jobID == "unassigned" {
		jobID = ""
	}
	return jobID, base
}
