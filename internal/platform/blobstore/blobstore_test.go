package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func uploadTestBlob(t *testing.T, store *InMemoryBlobStore, jobID, fileName, content string) *BlobMetadata {
	t.Helper()
	meta, err := store.Upload(context.Background(), BlobMetadata{
		FileName:    fileName,
		ContentType: "application/pdf",
		JobID:       jobID,
		Category:    "lab-report",
		CreatedBy:   "user-1",
	}, strings.NewReader(content))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return meta
}

func TestInMemoryBlobStore_UploadAndDownload(t *testing.T) {
	store := NewInMemoryBlobStore()
	meta := uploadTestBlob(t, store, "job-1", "exames.pdf", "pdf-bytes")

	if meta.ID == "" {
		t.Error("expected generated blob ID")
	}
	if meta.Size != int64(len("pdf-bytes")) {
		t.Errorf("expected size %d, got %d", len("pdf-bytes"), meta.Size)
	}
	if meta.Hash == "" {
		t.Error("expected SHA-256 hash to be computed")
	}

	rc, gotMeta, err := store.Download(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, []byte("pdf-bytes")) {
		t.Errorf("unexpected content: %q", data)
	}
	if gotMeta.FileName != "exames.pdf" {
		t.Errorf("expected exames.pdf, got %s", gotMeta.FileName)
	}
}

func TestInMemoryBlobStore_MissingFileName(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, err := store.Upload(context.Background(), BlobMetadata{}, strings.NewReader("x"))
	if !errors.Is(err, ErrMissingFileName) {
		t.Errorf("expected ErrMissingFileName, got %v", err)
	}
}

func TestInMemoryBlobStore_InvalidContentType(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, err := store.Upload(context.Background(), BlobMetadata{
		FileName:    "virus.exe",
		ContentType: "application/x-msdownload",
	}, strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestInMemoryBlobStore_DownloadNotFound(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, _, err := store.Download(context.Background(), "missing")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestInMemoryBlobStore_Delete(t *testing.T) {
	store := NewInMemoryBlobStore()
	meta := uploadTestBlob(t, store, "job-1", "exames.pdf", "content")

	if err := store.Delete(context.Background(), meta.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetMetadata(context.Background(), meta.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
	}
	if err := store.Delete(context.Background(), meta.ID); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound on second delete, got %v", err)
	}
}

func TestInMemoryBlobStore_ListByJob(t *testing.T) {
	store := NewInMemoryBlobStore()
	uploadTestBlob(t, store, "job-1", "a.pdf", "a")
	uploadTestBlob(t, store, "job-1", "b.pdf", "b")
	uploadTestBlob(t, store, "job-2", "c.pdf", "c")

	items, total, err := store.ListByJob(context.Background(), "job-1", "", 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 blobs for job-1, got total=%d len=%d", total, len(items))
	}

	items, total, err = store.ListByJob(context.Background(), "job-1", "export", 20, 0)
	if err != nil {
		t.Fatalf("list with category: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("expected no export blobs, got total=%d", total)
	}
}

func TestInMemoryBlobStore_ListByJobPagination(t *testing.T) {
	store := NewInMemoryBlobStore()
	for i := 0; i < 5; i++ {
		uploadTestBlob(t, store, "job-1", "f.pdf", strings.Repeat("x", i+1))
	}

	items, total, err := store.ListByJob(context.Background(), "job-1", "", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(items) != 2 {
		t.Errorf("expected page of 2, got %d", len(items))
	}

	items, _, _ = store.ListByJob(context.Background(), "job-1", "", 2, 4)
	if len(items) != 1 {
		t.Errorf("expected last page of 1, got %d", len(items))
	}
}

func TestInMemoryBlobStore_Search(t *testing.T) {
	store := NewInMemoryBlobStore()
	uploadTestBlob(t, store, "job-1", "hemograma.pdf", "a")
	uploadTestBlob(t, store, "job-2", "lipidograma.pdf", "b")

	items, total, err := store.Search(context.Background(), SearchParams{FileName: "hemo"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || items[0].FileName != "hemograma.pdf" {
		t.Errorf("expected hemograma.pdf, got total=%d", total)
	}

	before := time.Now().Add(-time.Hour)
	_, total, _ = store.Search(context.Background(), SearchParams{CreatedBefore: &before})
	if total != 0 {
		t.Errorf("expected no blobs created before an hour ago, got %d", total)
	}
}

func TestSplitObjectName(t *testing.T) {
	jobID, blobID := splitObjectName("job-1/abc")
	if jobID != "job-1" || blobID != "abc" {
		t.Errorf("unexpected split: %q %q", jobID, blobID)
	}

	jobID, _ = splitObjectName("unassigned/abc")
	if jobID != "" {
		t.Errorf("expected empty job for unassigned prefix, got %q", jobID)
	}
}
