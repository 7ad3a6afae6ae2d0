package service

import (
	"context"
	"errors"
	"strings"

	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var ErrAnswerNotFound = errors.New("answer not found")

// AnswerSubmission is everything the answer record is created from.
type AnswerSubmission struct {
	QuestionID   primitive.ObjectID
	ExpertID     primitive.ObjectID
	TextResponse *string
	MediaAssetID *primitive.ObjectID
	Attachments  []domain.AttachmentDescriptor
}

// AnswerSubmitter creates answer records.
type AnswerSubmitter struct {
	repo   repository.AnswerRepository
	logger *zap.Logger
}

// NewAnswerSubmitter creates a new AnswerSubmitter.
func NewAnswerSubmitter(repo repository.AnswerRepository, logger *zap.Logger) *AnswerSubmitter {
	return &AnswerSubmitter{repo: repo, logger: logger.Named("answers")}
}

// SubmitAnswer creates the answer. A failed create is a SubmissionError
// carrying what the database reported.
func (s *AnswerSubmitter) SubmitAnswer(ctx context.Context, sub AnswerSubmission) (*domain.Answer, error) {
	if sub.QuestionID.IsZero() || sub.ExpertID.IsZero() {
		return nil, domain.ErrMissingOwnership
	}

	text := sub.TextResponse
	if text != nil && strings.TrimSpace(*text) == "" {
		text = nil
	}
	if !domain.HasContent(text, sub.MediaAssetID, len(sub.Attachments)) {
		return nil, domain.ErrEmptyAnswer
	}

	attachments := make([]domain.AttachmentDescriptor, len(sub.Attachments))
	copy(attachments, sub.Attachments)

	answer := &domain.Answer{
		QuestionID:   sub.QuestionID,
		ExpertID:     sub.ExpertID,
		TextResponse: text,
		MediaAssetID: sub.MediaAssetID,
		Attachments:  attachments,
	}
	if _, err := s.repo.Create(ctx, answer); err != nil {
		return nil, &domain.SubmissionError{Diagnostic: diagnosticFrom(err), Err: err}
	}

	s.logger.Info("answer created",
		zap.String("answer_id", answer.ID.Hex()),
		zap.String("question_id", answer.QuestionID.Hex()),
		zap.Int("attachments", len(answer.Attachments)),
		zap.Bool("has_media", answer.MediaAssetID != nil),
	)
	return answer, nil
}

// GetAnswer reads a stored answer back.
func (s *AnswerSubmitter) GetAnswer(ctx context.Context, id primitive.ObjectID) (*domain.Answer, error) {
	answer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAnswerNotFound
		}
		return nil, err
	}
	return answer, nil
}

// ListAnswers returns a question's answers, newest first. A question without
// answers yields an empty slice.
func (s *AnswerSubmitter) ListAnswers(ctx context.Context, questionID primitive.ObjectID) ([]domain.Answer, error) {
	answers, err := s.repo.GetByQuestionID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = []domain.Answer{}
	}
	return answers, nil
}

// diagnosticFrom extracts the database's own description of a failed write.
func diagnosticFrom(err error) string {
	var we mongo.WriteException
	if errors.As(err, &we) {
		msgs := make([]string, 0, len(we.WriteErrors)+1)
		for _, e := range we.WriteErrors {
			msgs = append(msgs, e.Message)
		}
		if we.WriteConcernError != nil {
			msgs = append(msgs, we.WriteConcernError.Message)
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if ce.Name != "" {
			return ce.Name + ": " + ce.Message
		}
		return ce.Message
	}
	return err.Error()
}
