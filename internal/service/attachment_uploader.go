package service

import (
	"context"
	"errors"
	"time"

	"alcyxob/askexpert/internal/config"
	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// uploadTargetIssuer is implemented by file stores that can hand out
// direct-to-storage upload URLs.
type uploadTargetIssuer interface {
	PresignUpload(ctx context.Context, filename, mimeType string, size int64) (*storage.UploadTarget, *domain.AttachmentDescriptor, error)
}

// AttachmentUploader uploads answer attachments with a bounded worker pool.
type AttachmentUploader struct {
	store         storage.FileStore
	workers       int
	throttleAfter int
	throttleDelay time.Duration
	logger        *zap.Logger
}

// NewAttachmentUploader creates a new AttachmentUploader tuned by the pipeline config.
func NewAttachmentUploader(store storage.FileStore, cfg config.PipelineConfig, logger *zap.Logger) *AttachmentUploader {
	workers := cfg.AttachmentWorkers
	if workers <= 0 {
		workers = 1
	}
	return &AttachmentUploader{
		store:         store,
		workers:       workers,
		throttleAfter: cfg.ThrottleAfter,
		throttleDelay: cfg.ThrottleDelay,
		logger:        logger.Named("attachments"),
	}
}

// UploadAttachments uploads every pending item and passes uploaded ones through untouched.
// Results keep input order. A file that fails is logged and left out, so callers
// that need every file compare lengths. The only error is ctx ending mid-batch;
// files that finished before that are still returned alongside it.
func (u *AttachmentUploader) UploadAttachments(ctx context.Context, items []domain.Attachment) ([]domain.AttachmentDescriptor, error) {
	slots := make([]*domain.AttachmentDescriptor, len(items))

	pending := 0
	for _, item := range items {
		if !item.IsUploaded() {
			pending++
		}
	}
	throttle := u.throttleDelay > 0 && u.throttleAfter > 0 && pending > u.throttleAfter

	var g errgroup.Group
	g.SetLimit(u.workers)

	started := 0
	for i, item := range items {
		if d, ok := item.Uploaded(); ok {
			if d.ID == "" || d.URL == "" {
				u.logger.Warn("skipping uploaded attachment without id or url", zap.String("filename", d.Filename))
				continue
			}
			slots[i] = &d
			continue
		}

		blob, ok := item.Pending()
		if !ok {
			continue
		}
		if throttle && started > 0 {
			if err := sleepCtx(ctx, u.throttleDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		started++

		i := i
		g.Go(func() error {
			desc, err := u.store.PutFile(ctx, blob)
			if err != nil {
				u.logger.Warn("attachment upload failed",
					zap.String("filename", blob.Filename),
					zap.Int64("size", blob.Size),
					zap.Error(err),
				)
				return nil
			}
			slots[i] = desc
			return nil
		})
	}
	_ = g.Wait()

	results := make([]domain.AttachmentDescriptor, 0, len(items))
	for _, d := range slots {
		if d != nil {
			results = append(results, *d)
		}
	}
	if err := ctx.Err(); err != nil {
		return results, &domain.UploadError{Op: "upload attachments", Err: err}
	}
	if skipped := len(items) - len(results); skipped > 0 {
		u.logger.Info("attachment batch incomplete", zap.Int("requested", len(items)), zap.Int("skipped", skipped))
	}
	return results, nil
}

// UploadOne uploads a single file ahead of submission.
func (u *AttachmentUploader) UploadOne(ctx context.Context, file domain.Blob) (*domain.AttachmentDescriptor, error) {
	desc, err := u.store.PutFile(ctx, file)
	if err != nil {
		var uploadErr *domain.UploadError
		if errors.As(err, &uploadErr) {
			return nil, err
		}
		return nil, &domain.UploadError{Op: "upload attachment", Target: file.Filename, Err: err}
	}
	return desc, nil
}

// PresignUpload returns a URL the client PUTs the file to, plus the descriptor
// the file will have once it lands.
func (u *AttachmentUploader) PresignUpload(ctx context.Context, filename, mimeType string, size int64) (*storage.UploadTarget, *domain.AttachmentDescriptor, error) {
	issuer, ok := u.store.(uploadTargetIssuer)
	if !ok {
		return nil, nil, &domain.ConfigurationError{Key: "s3.attachments_bucket", Reason: "file store cannot issue upload targets"}
	}
	return issuer.PresignUpload(ctx, filename, mimeType, size)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
