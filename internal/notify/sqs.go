package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/askexpert/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventAnswerSubmitted is carried in the event_type message attribute.
const EventAnswerSubmitted = "answer.submitted"

// Sender delivers an answer notification to the asker.
type Sender interface {
	Send(ctx context.Context, n domain.AnswerNotification) error
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// answerSubmittedEvent is the queue message body.
type answerSubmittedEvent struct {
	EventID       string    `json:"eventId"`
	EventType     string    `json:"eventType"`
	QuestionID    string    `json:"questionId"`
	AnswerID      string    `json:"answerId"`
	ExpertID      string    `json:"expertId"`
	AskerID       string    `json:"askerId,omitempty"`
	QuestionTitle string    `json:"questionTitle,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// SQSSender publishes notifications to an SQS queue consumed by the delivery worker.
type SQSSender struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
	now      func() time.Time
}

// NewSQSClient builds an SQS client, honouring a custom endpoint for local stacks.
func NewSQSClient(awsCfg aws.Config, endpoint string) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// NewSQSSender returns a Sender that writes to queueURL.
func NewSQSSender(client *sqs.Client, queueURL string, logger *zap.Logger) *SQSSender {
	return newSQSSender(client, queueURL, logger)
}

func newSQSSender(client sqsAPI, queueURL string, logger *zap.Logger) *SQSSender {
	return &SQSSender{
		client:   client,
		queueURL: queueURL,
		logger:   logger.Named("notify.sqs"),
		now:      time.Now,
	}
}

// Send publishes one answer.submitted event.
func (s *SQSSender) Send(ctx context.Context, n domain.AnswerNotification) error {
	evt := answerSubmittedEvent{
		EventID:       uuid.NewString(),
		EventType:     EventAnswerSubmitted,
		QuestionID:    n.QuestionID.Hex(),
		AnswerID:      n.AnswerID.Hex(),
		ExpertID:      n.ExpertID.Hex(),
		QuestionTitle: n.Context.QuestionTitle,
		OccurredAt:    s.now().UTC(),
	}
	if !n.Context.AskerID.IsZero() {
		evt.AskerID = n.Context.AskerID.Hex()
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventAnswerSubmitted),
			},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("send message [%s]: %w", apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Debug("notification queued",
		zap.String("answerId", evt.AnswerID),
		zap.String("messageId", aws.ToString(out.MessageId)),
	)
	return nil
}

// LogSender only logs. It stands in when no queue is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("notify.log")}
}

func (s *LogSender) Send(_ context.Context, n domain.AnswerNotification) error {
	s.logger.Info("answer notification (no queue configured)",
		zap.String("questionId", n.QuestionID.Hex()),
		zap.String("answerId", n.AnswerID.Hex()),
		zap.String("title", strings.TrimSpace(n.Context.QuestionTitle)),
	)
	return nil
}
