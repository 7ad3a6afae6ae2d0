package storage

import (
	"context"
	"time"

	"alcyxob/askexpert/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	audioKeyPrefix          = "audio"
	defaultAudioContentType = "audio/webm"
)

// AudioBackend stores audio recordings as single objects in a blob store.
type AudioBackend struct {
	store  ObjectStorage
	logger *zap.Logger
	now    func() time.Time
}

// NewAudioBackend creates the blob-store media backend.
func NewAudioBackend(store ObjectStorage, logger *zap.Logger) *AudioBackend {
	return &AudioBackend{
		store:  store,
		logger: logger.With(zap.String("backend", "audio")),
		now:    time.Now,
	}
}

// Upload sends the raw blob as the request body and turns the response into an id/url pair.
func (b *AudioBackend) Upload(ctx context.Context, blob domain.Blob, meta MediaMetadata) (*domain.MediaDescriptor, error) {
	contentType := blob.ContentType
	if contentType == "" {
		contentType = defaultAudioContentType
	}

	id := uuid.NewString()
	key := objectKey(audioKeyPrefix, b.now(), id+extensionFor(blob.Filename, contentType))

	body, err := blob.Open()
	if err != nil {
		return nil, &domain.UploadError{Op: "open audio blob", Target: blob.Filename, Err: err}
	}
	defer body.Close()

	if _, err := b.store.PutObject(ctx, key, contentType, body, blob.Size); err != nil {
		return nil, err
	}

	url, err := b.store.ObjectURL(ctx, key)
	if err != nil {
		return nil, &domain.UploadError{Op: "resolve audio url", Target: key, Err: err}
	}
	if url == "" {
		return nil, &domain.UploadError{Op: "resolve audio url", Target: key, Err: errMalformedResponse}
	}

	b.logger.Debug("audio segment stored", zap.String("id", id), zap.String("key", key), zap.Int64("size", blob.Size))

	return &domain.MediaDescriptor{
		ID:              id,
		PlaybackURL:     url,
		DurationSeconds: nonNegative(meta.DurationSeconds),
		Kind:            domain.MediaKindAudio,
		SizeBytes:       nonNegativeSize(blob.Size),
	}, nil
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func nonNegativeSize(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
