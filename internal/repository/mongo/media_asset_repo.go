package mongo

import (
	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const mediaAssetCollectionName = "media_assets"

// mongoMediaAssetRepository implements repository.MediaAssetRepository
type mongoMediaAssetRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaAssetRepository creates a new MediaAsset repository backed by MongoDB.
func NewMongoMediaAssetRepository(db *mongo.Database) repository.MediaAssetRepository {
	return &mongoMediaAssetRepository{
		collection: db.Collection(mediaAssetCollectionName),
	}
}

// Create inserts a new media asset record. The segment list is stored as given.
func (r *mongoMediaAssetRepository) Create(ctx context.Context, asset *domain.MediaAssetRecord) (primitive.ObjectID, error) {
	if len(asset.Segments) == 0 {
		return primitive.NilObjectID, fmt.Errorf("%w: media asset requires at least one segment", repository.ErrInvalid)
	}
	if asset.OwnerType == "" {
		return primitive.NilObjectID, fmt.Errorf("%w: media asset requires an owner type", repository.ErrInvalid)
	}

	asset.ID = primitive.NewObjectID()
	asset.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, asset)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a media asset record by its ID.
func (r *mongoMediaAssetRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MediaAssetRecord, error) {
	var asset domain.MediaAssetRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&asset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// Delete removes a media asset record.
func (r *mongoMediaAssetRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureMediaAssetIndexes creates necessary indexes for the media_assets collection.
func EnsureMediaAssetIndexes(ctx context.Context, collection *mongo.Collection, logger *zap.Logger) {
	indexes := []mongo.IndexModel{
		{
			// Reconciliation scans for assets still owned by the placeholder
			Keys:    bson.D{{Key: "ownerType", Value: 1}, {Key: "ownerId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Warn("failed to create indexes", zap.String("collection", collection.Name()), zap.Error(err))
	}
}
