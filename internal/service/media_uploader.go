package service

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/storage"

	"go.uber.org/zap"
)

// BackendSelector resolves the storage backend for a media kind.
type BackendSelector interface {
	Select(kind domain.MediaKind) (storage.MediaBackend, error)
}

// MediaUploader uploads one recorded media blob to the backend chosen for its kind.
type MediaUploader struct {
	selector BackendSelector
	logger   *zap.Logger
}

// NewMediaUploader creates a new MediaUploader.
func NewMediaUploader(selector BackendSelector, logger *zap.Logger) *MediaUploader {
	return &MediaUploader{selector: selector, logger: logger.Named("media")}
}

// CheckBackend fails with a ConfigurationError when kind has no backend.
// It makes no network call.
func (u *MediaUploader) CheckBackend(kind domain.MediaKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown media kind %q", domain.ErrInvalidRecording, kind)
	}
	_, err := u.selector.Select(kind)
	return err
}

// UploadMedia uploads blob and returns its descriptor.
// Errors are a ConfigurationError (no backend) or an UploadError.
func (u *MediaUploader) UploadMedia(ctx context.Context, blob domain.Blob, kind domain.MediaKind, durationSeconds float64) (*domain.MediaDescriptor, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown media kind %q", domain.ErrInvalidRecording, kind)
	}
	backend, err := u.selector.Select(kind)
	if err != nil {
		return nil, err
	}

	desc, err := backend.Upload(ctx, blob, storage.MediaMetadata{Kind: kind, DurationSeconds: durationSeconds})
	if err != nil {
		var uploadErr *domain.UploadError
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &uploadErr) || errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &domain.UploadError{Op: "upload " + string(kind), Target: blob.Filename, Err: err}
	}
	if desc == nil || desc.ID == "" {
		return nil, &domain.UploadError{Op: "upload " + string(kind), Target: blob.Filename, Err: errors.New("backend returned no media id")}
	}

	u.logger.Debug("media segment uploaded",
		zap.String("kind", string(kind)),
		zap.String("media_id", desc.ID),
		zap.Float64("duration_seconds", desc.DurationSeconds),
	)
	return desc, nil
}
