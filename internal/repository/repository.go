package repository

import (
	"alcyxob/askexpert/internal/domain" // Import our defined domain models
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound = RepositoryError("not found")
	ErrInvalid  = RepositoryError("invalid record")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// MediaAssetRepository persists media asset records. Records are write-once;
// Delete exists only to compensate for an answer that was never created.
type MediaAssetRepository interface {
	Create(ctx context.Context, asset *domain.MediaAssetRecord) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MediaAssetRecord, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// AnswerRepository is the system of record for answers.
type AnswerRepository interface {
	Create(ctx context.Context, answer *domain.Answer) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Answer, error)
	GetByQuestionID(ctx context.Context, questionID primitive.ObjectID) ([]domain.Answer, error)
}
