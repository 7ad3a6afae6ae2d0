package storage

import (
	"context"
	"time"

	"alcyxob/askexpert/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	attachmentKeyPrefix          = "attachments"
	defaultAttachmentContentType = "application/octet-stream"
)

// S3FileStore keeps answer attachments in their own bucket.
type S3FileStore struct {
	store  ObjectStorage
	logger *zap.Logger
	now    func() time.Time
}

func NewS3FileStore(store ObjectStorage, logger *zap.Logger) *S3FileStore {
	return &S3FileStore{
		store:  store,
		logger: logger.With(zap.String("store", "attachments")),
		now:    time.Now,
	}
}

// PutFile uploads one attachment. The returned descriptor keeps file.Filename verbatim.
func (f *S3FileStore) PutFile(ctx context.Context, file domain.Blob) (*domain.AttachmentDescriptor, error) {
	mimeType := file.ContentType
	if mimeType == "" {
		mimeType = defaultAttachmentContentType
	}

	id, key := f.newKey(file.Filename)

	body, err := file.Open()
	if err != nil {
		return nil, &domain.UploadError{Op: "open attachment", Target: file.Filename, Err: err}
	}
	defer body.Close()

	if _, err := f.store.PutObject(ctx, key, mimeType, body, file.Size); err != nil {
		return nil, err
	}

	url, err := f.store.ObjectURL(ctx, key)
	if err != nil {
		return nil, &domain.UploadError{Op: "resolve attachment url", Target: key, Err: err}
	}

	return &domain.AttachmentDescriptor{
		ID:        id,
		URL:       url,
		Filename:  file.Filename,
		SizeBytes: nonNegativeSize(file.Size),
		MimeType:  mimeType,
	}, nil
}

// PresignUpload reserves a key for a client-side upload and returns the
// descriptor the attachment will have once the client has PUT the bytes.
func (f *S3FileStore) PresignUpload(ctx context.Context, filename, mimeType string, size int64) (*UploadTarget, *domain.AttachmentDescriptor, error) {
	if mimeType == "" {
		mimeType = defaultAttachmentContentType
	}
	id, key := f.newKey(filename)

	uploadURL, err := f.store.GeneratePresignedUploadURL(ctx, key, mimeType, DefaultPresignedURLExpiry)
	if err != nil {
		return nil, nil, &domain.UploadError{Op: "presign attachment upload", Target: filename, Err: err}
	}
	url, err := f.store.ObjectURL(ctx, key)
	if err != nil {
		return nil, nil, &domain.UploadError{Op: "resolve attachment url", Target: key, Err: err}
	}

	target := &UploadTarget{
		UploadURL: uploadURL,
		ExpiresAt: f.now().Add(DefaultPresignedURLExpiry).UTC(),
	}
	desc := &domain.AttachmentDescriptor{
		ID:        id,
		URL:       url,
		Filename:  filename,
		SizeBytes: nonNegativeSize(size),
		MimeType:  mimeType,
	}
	return target, desc, nil
}

// newKey generates attachments/YYYY/MM/<uuid>-<sanitized name>.
func (f *S3FileStore) newKey(filename string) (id, key string) {
	id = uuid.NewString()
	return id, objectKey(attachmentKeyPrefix, f.now(), id+"-"+sanitizeFilename(filename))
}
