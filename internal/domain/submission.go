package domain

import "fmt"

// Stage is the progress marker of one submission attempt.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageUploadingMedia       Stage = "uploading_media"
	StageUploadingAttachments Stage = "uploading_attachments"
	StageSubmitting           Stage = "submitting"
	StageComplete             Stage = "complete"
	StageFailed               Stage = "failed"
)

// Terminal reports whether no further transition is allowed without a reset.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// forward transitions; failed is reachable from every non-terminal stage.
var stageTransitions = map[Stage][]Stage{
	StageIdle:                 {StageUploadingMedia, StageUploadingAttachments},
	StageUploadingMedia:       {StageUploadingAttachments},
	StageUploadingAttachments: {StageSubmitting},
	StageSubmitting:           {StageComplete},
}

// MediaResult accumulates the media stage's output.
type MediaResult struct {
	Segments []MediaDescriptor `json:"segments"`
	Asset    *MediaAssetRecord `json:"asset,omitempty"`
}

// SubmissionState is owned by exactly one in-flight submission.
// It is not safe for concurrent writers.
type SubmissionState struct {
	Stage             Stage                  `json:"stage"`
	FailedStage       Stage                  `json:"failedStage,omitempty"` // stage that was running when Fail was called
	Err               error                  `json:"-"`
	Error             string                 `json:"error,omitempty"`
	MediaResult       *MediaResult           `json:"mediaResult,omitempty"`
	AttachmentResults []AttachmentDescriptor `json:"attachmentResults"`
	Answer            *Answer                `json:"answer,omitempty"`
}

// NewSubmissionState returns a state in the idle stage.
func NewSubmissionState() *SubmissionState {
	return &SubmissionState{Stage: StageIdle}
}

// Advance moves to the next stage, rejecting anything the state machine does not allow.
func (s *SubmissionState) Advance(to Stage) error {
	for _, allowed := range stageTransitions[s.Stage] {
		if allowed == to {
			s.Stage = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, to)
}

// Fail records err and the stage it interrupted, then moves to the failed stage.
// Partial results are kept.
func (s *SubmissionState) Fail(err error) error {
	if s.Stage.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, StageFailed)
	}
	s.FailedStage = s.Stage
	s.Stage = StageFailed
	s.Err = err
	if err != nil {
		s.Error = err.Error()
	}
	return nil
}

// Reset returns the state to idle and drops everything it accumulated.
func (s *SubmissionState) Reset() {
	*s = SubmissionState{Stage: StageIdle}
}

// Snapshot returns a copy that shares no slices with s.
func (s *SubmissionState) Snapshot() SubmissionState {
	out := *s
	if s.MediaResult != nil {
		mr := MediaResult{Segments: append([]MediaDescriptor(nil), s.MediaResult.Segments...)}
		if s.MediaResult.Asset != nil {
			asset := *s.MediaResult.Asset
			asset.Segments = append([]MediaDescriptor(nil), asset.Segments...)
			mr.Asset = &asset
		}
		out.MediaResult = &mr
	}
	if s.AttachmentResults != nil {
		out.AttachmentResults = append([]AttachmentDescriptor(nil), s.AttachmentResults...)
	}
	if s.Answer != nil {
		answer := *s.Answer
		answer.Attachments = append([]AttachmentDescriptor(nil), answer.Attachments...)
		out.Answer = &answer
	}
	return out
}
