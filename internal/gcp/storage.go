package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
)

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// It's a shared utility for all services.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(content); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", objectName)
			return nil
		}
		slog.Error("Failed to finalize GCS write.", "gcsObject", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// SaveToGCS writes content to a GCS object, replacing any existing version.
func SaveToGCS(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content []byte) error {
	writer := bucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(content); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		slog.Error("Failed to finalize GCS write.", "gcsObject", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// ObjectURI formats a gs:// reference.
func ObjectURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// ParseObjectURI splits a gs://bucket/object reference.
func ParseObjectURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// uri must name a bucket and an object: %q", uri)
	}
	return bucket, object, nil
}

// BlobStore stores uploaded files in one bucket under generated names.
type BlobStore struct {
	client *storage.Client
	bucket string
}

func NewBlobStore(client *storage.Client, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket}
}

// Store uploads data as <uuid><ext>, keeping the extension of name, and
// returns the gs:// reference.
func (s *BlobStore) Store(ctx context.Context, name string, data []byte) (string, error) {
	object := uuid.NewString() + strings.ToLower(path.Ext(name))
	if err := SaveToGCSAtomically(ctx, s.client.Bucket(s.bucket), object, "", data); err != nil {
		return "", err
	}
	return ObjectURI(s.bucket, object), nil
}

// Open streams the object behind a gs:// reference. The reference may point
// at any bucket.
func (s *BlobStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, object, err := ParseObjectURI(ref)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", ref, err)
	}
	return reader, nil
}

// Fetch reads the whole object behind a gs:// reference.
func (s *BlobStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	reader, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", ref, err)
	}
	return data, nil
}

// Put writes data to object in the store's bucket, replacing any previous
// version.
func (s *BlobStore) Put(ctx context.Context, object, contentType string, data []byte) (string, error) {
	if err := SaveToGCS(ctx, s.client.Bucket(s.bucket), object, contentType, data); err != nil {
		return "", err
	}
	return ObjectURI(s.bucket, object), nil
}
