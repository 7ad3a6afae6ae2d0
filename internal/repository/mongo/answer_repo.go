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

const answerCollectionName = "answers"

// mongoAnswerRepository implements repository.AnswerRepository
type mongoAnswerRepository struct {
	collection *mongo.Collection
}

// NewMongoAnswerRepository creates a new Answer repository backed by MongoDB.
func NewMongoAnswerRepository(db *mongo.Database) repository.AnswerRepository {
	return &mongoAnswerRepository{
		collection: db.Collection(answerCollectionName),
	}
}

// Create inserts a new answer.
func (r *mongoAnswerRepository) Create(ctx context.Context, answer *domain.Answer) (primitive.ObjectID, error) {
	if answer.QuestionID == primitive.NilObjectID || answer.ExpertID == primitive.NilObjectID {
		return primitive.NilObjectID, fmt.Errorf("%w: answer requires questionId and expertId", repository.ErrInvalid)
	}
	if answer.Attachments == nil {
		// Stored as [] rather than null so readers never special-case it
		answer.Attachments = []domain.AttachmentDescriptor{}
	}

	answer.ID = primitive.NewObjectID()
	answer.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, answer)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves an answer by its ID.
func (r *mongoAnswerRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Answer, error) {
	var answer domain.Answer
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&answer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &answer, nil
}

// GetByQuestionID lists a question's answers, newest first.
func (r *mongoAnswerRepository) GetByQuestionID(ctx context.Context, questionID primitive.ObjectID) ([]domain.Answer, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"questionId": questionID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var answers []domain.Answer
	if err = cursor.All(ctx, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// EnsureAnswerIndexes creates necessary indexes for the answers collection.
func EnsureAnswerIndexes(ctx context.Context, collection *mongo.Collection, logger *zap.Logger) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "questionId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "expertId", Value: 1}},
			Options: options.Index(),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Warn("failed to create indexes", zap.String("collection", collection.Name()), zap.Error(err))
	}
}
