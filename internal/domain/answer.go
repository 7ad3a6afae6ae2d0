package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role distinguishes the two sides of the marketplace.
type Role string

const (
	RoleExpert Role = "expert"
	RoleAsker  Role = "asker"
)

// Answer is the persisted answer record. Once it exists the answer is considered submitted.
type Answer struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	QuestionID   primitive.ObjectID     `bson:"questionId" json:"questionId"`
	ExpertID     primitive.ObjectID     `bson:"expertId" json:"expertId"`
	TextResponse *string                `bson:"textResponse,omitempty" json:"textResponse"`
	MediaAssetID *primitive.ObjectID    `bson:"mediaAssetId,omitempty" json:"mediaAssetId"`
	Attachments  []AttachmentDescriptor `bson:"attachments" json:"attachments"`
	CreatedAt    time.Time              `bson:"createdAt" json:"createdAt"`
}

// HasContent reports whether an answer would carry anything for the asker.
func HasContent(text *string, mediaAssetID *primitive.ObjectID, attachments int) bool {
	if text != nil && strings.TrimSpace(*text) != "" {
		return true
	}
	if mediaAssetID != nil && !mediaAssetID.IsZero() {
		return true
	}
	return attachments > 0
}

// QuestionContext is what the asker needs to recognise the notification.
type QuestionContext struct {
	AskerID       primitive.ObjectID `json:"askerId"`
	QuestionTitle string             `json:"questionTitle,omitempty"`
}

// AnswerNotification is sent to the asker after the answer record exists.
type AnswerNotification struct {
	QuestionID primitive.ObjectID `json:"questionId"`
	AnswerID   primitive.ObjectID `json:"answerId"`
	ExpertID   primitive.ObjectID `json:"expertId"`
	Context    QuestionContext    `json:"context"`
}
