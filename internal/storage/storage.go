package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"alcyxob/askexpert/internal/domain"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// MaxPresignedURLExpiry is the longest lifetime SigV4 allows. Used for object
// URLs that are stored in records when no public base URL is configured.
const MaxPresignedURLExpiry = 7 * 24 * time.Hour

var errMalformedResponse = errors.New("malformed backend response")

// ObjectStorage defines the interface for object storage operations on one bucket.
type ObjectStorage interface {
	// PutObject stores body under objectKey and returns the ETag the backend reported.
	PutObject(ctx context.Context, objectKey, contentType string, body io.ReadSeeker, size int64) (string, error)

	// ObjectURL returns a URL that resolves to the stored object.
	ObjectURL(ctx context.Context, objectKey string) (string, error)

	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}

// MediaMetadata travels with a media blob to its backend.
type MediaMetadata struct {
	Kind            domain.MediaKind
	DurationSeconds float64
}

// MediaBackend is the uniform upload contract every media storage tier implements.
type MediaBackend interface {
	Upload(ctx context.Context, blob domain.Blob, meta MediaMetadata) (*domain.MediaDescriptor, error)
}

// FileStore stores answer attachments.
type FileStore interface {
	PutFile(ctx context.Context, file domain.Blob) (*domain.AttachmentDescriptor, error)
}

// UploadTarget is where a client sends bytes directly, bypassing this service.
type UploadTarget struct {
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}
