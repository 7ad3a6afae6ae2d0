package domain

import (
	"errors"
	"fmt"
)

// --- Precondition errors (raised before any network call) ---
var (
	ErrEmptyAnswer        = errors.New("answer has no text, recording, or attachments")
	ErrMissingOwnership   = errors.New("question ID and expert ID are required")
	ErrTooManyAttachments = errors.New("too many attachments")
	ErrInvalidRecording   = errors.New("invalid recording")
)

// --- Pipeline errors ---
var (
	ErrInvalidTransition     = errors.New("invalid submission state transition")
	ErrNoAttachmentsUploaded = errors.New("no attachments uploaded")
	ErrIncompleteAttachments = errors.New("not every attachment was uploaded")
	ErrNothingToResume       = errors.New("submission has nothing to resume")
)

// ConfigurationError reports missing backend credentials or settings.
type ConfigurationError struct {
	Key    string // Config key, e.g. "stream.api_token"
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration error: %s is not set", e.Key)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// UploadError reports a failed media or attachment transfer.
type UploadError struct {
	Op     string // e.g. "request upload target", "put object"
	Target string // filename or object key
	Code   string // backend-reported code when available
	Err    error
}

func (e *UploadError) Error() string {
	msg := "upload failed: " + e.Op
	if e.Target != "" {
		msg += " " + e.Target
	}
	if e.Code != "" {
		msg += " [" + e.Code + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmissionError reports a failed answer create. Diagnostic holds whatever
// the system of record said about the failure.
type SubmissionError struct {
	Diagnostic string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("answer submission failed: %v", e.Err)
	}
	return fmt.Sprintf("answer submission failed: %v (%s)", e.Err, e.Diagnostic)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// MediaAssetError reports a failed write of the media asset record. The
// segments it would have wrapped are already uploaded.
type MediaAssetError struct {
	Diagnostic string
	Err        error
}

func (e *MediaAssetError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("media asset write failed: %v", e.Err)
	}
	return fmt.Sprintf("media asset write failed: %v (%s)", e.Err, e.Diagnostic)
}

func (e *MediaAssetError) Unwrap() error { return e.Err }

// NotificationError is only ever logged.
type NotificationError struct {
	AnswerID string
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification for answer %s failed: %v", e.AnswerID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
