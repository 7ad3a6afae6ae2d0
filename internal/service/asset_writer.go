package service

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var ErrMediaAssetNotFound = errors.New("media asset not found")

// AssetWriter persists the one MediaAssetRecord that wraps an answer's segments.
type AssetWriter struct {
	repo   repository.MediaAssetRepository
	logger *zap.Logger
}

// NewAssetWriter creates a new AssetWriter.
func NewAssetWriter(repo repository.MediaAssetRepository, logger *zap.Logger) *AssetWriter {
	return &AssetWriter{repo: repo, logger: logger.Named("assets")}
}

// WriteMediaAsset stores segments in the order given. The owner is a placeholder
// since the answer does not exist yet. A non-positive total is computed from the segments.
func (w *AssetWriter) WriteMediaAsset(ctx context.Context, segments []domain.MediaDescriptor, totalDurationSeconds float64) (*domain.MediaAssetRecord, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments to persist", domain.ErrInvalidRecording)
	}
	if totalDurationSeconds <= 0 {
		totalDurationSeconds = domain.TotalDuration(segments)
	}

	owned := make([]domain.MediaDescriptor, len(segments))
	copy(owned, segments)

	asset := &domain.MediaAssetRecord{
		OwnerType:            domain.OwnerTypeAnswer,
		OwnerID:              domain.PendingOwnerID,
		PrimarySegment:       owned[0],
		Segments:             owned,
		TotalDurationSeconds: totalDurationSeconds,
		Status:               domain.AssetStatusReady,
	}

	if _, err := w.repo.Create(ctx, asset); err != nil {
		return nil, &domain.MediaAssetError{Diagnostic: diagnosticFrom(err), Err: fmt.Errorf("create media asset: %w", err)}
	}

	w.logger.Info("media asset written",
		zap.String("asset_id", asset.ID.Hex()),
		zap.Int("segments", len(owned)),
		zap.Float64("total_duration_seconds", totalDurationSeconds),
	)
	return asset, nil
}

// DeleteMediaAsset removes an asset whose answer was never created.
// A record that is already gone counts as deleted.
func (w *AssetWriter) DeleteMediaAsset(ctx context.Context, id primitive.ObjectID) error {
	err := w.repo.Delete(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

// GetMediaAsset reads a stored asset back.
func (w *AssetWriter) GetMediaAsset(ctx context.Context, id primitive.ObjectID) (*domain.MediaAssetRecord, error) {
	asset, err := w.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMediaAssetNotFound
		}
		return nil, err
	}
	return asset, nil
}
