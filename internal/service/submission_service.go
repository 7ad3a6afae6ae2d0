package service

import (
	"context"
	"fmt"
	"time"

	"alcyxob/askexpert/internal/config"
	"alcyxob/askexpert/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const defaultCompensationTimeout = 10 * time.Second

// Notifier issues an answer notification without waiting for delivery.
type Notifier interface {
	Notify(n domain.AnswerNotification)
}

// SubmitRequest is one expert's answer to one question.
type SubmitRequest struct {
	QuestionID            primitive.ObjectID
	ExpertID              primitive.ObjectID
	TextResponse          *string
	Recording             *domain.Recording
	Attachments           []domain.Attachment
	QuestionContext       domain.QuestionContext
	RequireAllAttachments bool
}

// PipelineOptions are the orchestrator's knobs.
type PipelineOptions struct {
	MaxAttachments      int
	CompensateOrphans   bool
	CompensationTimeout time.Duration
}

// PipelineOptionsFromConfig maps the pipeline config section.
func PipelineOptionsFromConfig(cfg config.PipelineConfig) PipelineOptions {
	return PipelineOptions{
		MaxAttachments:      cfg.MaxAttachments,
		CompensateOrphans:   cfg.CompensateOrphans,
		CompensationTimeout: defaultCompensationTimeout,
	}
}

// SubmitOption customises a single Submit or Resume call.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	progress func(domain.SubmissionState)
}

// WithProgress registers fn to receive a snapshot on every stage change
// and after every uploaded media segment. fn runs on the submitting goroutine.
func WithProgress(fn func(domain.SubmissionState)) SubmitOption {
	return func(o *submitOptions) { o.progress = fn }
}

// SubmissionService sequences media upload, attachment upload, answer creation
// and notification for one answer.
type SubmissionService struct {
	media       *MediaUploader
	attachments *AttachmentUploader
	assets      *AssetWriter
	answers     *AnswerSubmitter
	notifier    Notifier
	opts        PipelineOptions
	logger      *zap.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	media *MediaUploader,
	attachments *AttachmentUploader,
	assets *AssetWriter,
	answers *AnswerSubmitter,
	notifier Notifier,
	opts PipelineOptions,
	logger *zap.Logger,
) *SubmissionService {
	if opts.CompensationTimeout <= 0 {
		opts.CompensationTimeout = defaultCompensationTimeout
	}
	return &SubmissionService{
		media:       media,
		attachments: attachments,
		assets:      assets,
		answers:     answers,
		notifier:    notifier,
		opts:        opts,
		logger:      logger.Named("submission"),
	}
}

// resumeSeed carries results from an earlier attempt into a new one.
type resumeSeed struct {
	segments    []domain.MediaDescriptor
	asset       *domain.MediaAssetRecord
	attachments []domain.AttachmentDescriptor
}

// Submit runs one submission attempt from a fresh state. The returned state is
// either complete or failed; on failure it keeps every partial result.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest, opts ...SubmitOption) *domain.SubmissionState {
	return s.run(ctx, req, resumeSeed{}, opts)
}

// Resume starts a new attempt that reuses prior's partial results: uploaded media
// segments are not uploaded again, an existing asset record is reused, and pending
// attachments whose filename matches an earlier result are treated as uploaded.
func (s *SubmissionService) Resume(ctx context.Context, req SubmitRequest, prior *domain.SubmissionState, opts ...SubmitOption) (*domain.SubmissionState, error) {
	if prior == nil {
		return s.Submit(ctx, req, opts...), nil
	}
	if prior.Stage == domain.StageComplete {
		return nil, domain.ErrNothingToResume
	}

	snap := prior.Snapshot()
	var seed resumeSeed
	if snap.MediaResult != nil {
		seed.segments = snap.MediaResult.Segments
		seed.asset = snap.MediaResult.Asset
	}
	seed.attachments = snap.AttachmentResults
	return s.run(ctx, req, seed, opts), nil
}

// GetAnswer reads a stored answer.
func (s *SubmissionService) GetAnswer(ctx context.Context, id primitive.ObjectID) (*domain.Answer, error) {
	return s.answers.GetAnswer(ctx, id)
}

// ListAnswers lists the answers stored for a question.
func (s *SubmissionService) ListAnswers(ctx context.Context, questionID primitive.ObjectID) ([]domain.Answer, error) {
	return s.answers.ListAnswers(ctx, questionID)
}

// GetMediaAsset reads a stored media asset.
func (s *SubmissionService) GetMediaAsset(ctx context.Context, id primitive.ObjectID) (*domain.MediaAssetRecord, error) {
	return s.assets.GetMediaAsset(ctx, id)
}

// attempt is the bookkeeping of one run.
type attempt struct {
	state    *domain.SubmissionState
	progress func(domain.SubmissionState)
	logger   *zap.Logger
}

func (a *attempt) emit() {
	if a.progress != nil {
		a.progress(a.state.Snapshot())
	}
}

func (a *attempt) advance(to domain.Stage) {
	if err := a.state.Advance(to); err != nil {
		// Only reachable through a sequencing bug in run.
		a.logger.Error("illegal stage transition", zap.Error(err))
		return
	}
	a.emit()
}

func (a *attempt) fail(err error) *domain.SubmissionState {
	if ferr := a.state.Fail(err); ferr != nil {
		a.logger.Error("cannot fail terminal submission", zap.Error(ferr))
		return a.state
	}
	a.logger.Warn("submission failed", zap.String("stage", string(a.state.FailedStage)), zap.Error(err))
	a.emit()
	return a.state
}

func (s *SubmissionService) run(ctx context.Context, req SubmitRequest, seed resumeSeed, opts []SubmitOption) *domain.SubmissionState {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}
	a := &attempt{
		state:    domain.NewSubmissionState(),
		progress: o.progress,
		logger: s.logger.With(
			zap.String("question_id", req.QuestionID.Hex()),
			zap.String("expert_id", req.ExpertID.Hex()),
		),
	}

	if err := s.validate(req, seed); err != nil {
		return a.fail(err)
	}

	var (
		mediaAssetID *primitive.ObjectID
		wroteAsset   bool
	)
	if req.Recording.Present() {
		a.advance(domain.StageUploadingMedia)
		asset, wrote, err := s.uploadMedia(ctx, a, req.Recording, seed)
		if err != nil {
			return a.fail(err)
		}
		id := asset.ID
		mediaAssetID = &id
		wroteAsset = wrote
	}

	a.advance(domain.StageUploadingAttachments)
	items := resolveAttachments(req.Attachments, seed.attachments)
	results, err := s.attachments.UploadAttachments(ctx, items)
	a.state.AttachmentResults = results
	if err != nil {
		return a.fail(err)
	}
	a.emit()

	if req.RequireAllAttachments && len(results) < len(items) {
		return a.fail(&domain.UploadError{
			Op:  "upload attachments",
			Err: fmt.Errorf("%w: %d of %d uploaded", domain.ErrIncompleteAttachments, len(results), len(items)),
		})
	}
	if len(items) > 0 && len(results) == 0 && !domain.HasContent(req.TextResponse, mediaAssetID, 0) {
		return a.fail(&domain.UploadError{Op: "upload attachments", Err: domain.ErrNoAttachmentsUploaded})
	}
	if err := ctx.Err(); err != nil {
		return a.fail(err)
	}

	a.advance(domain.StageSubmitting)
	answer, err := s.answers.SubmitAnswer(ctx, AnswerSubmission{
		QuestionID:   req.QuestionID,
		ExpertID:     req.ExpertID,
		TextResponse: req.TextResponse,
		MediaAssetID: mediaAssetID,
		Attachments:  results,
	})
	if err != nil {
		if wroteAsset && s.opts.CompensateOrphans {
			s.compensate(a)
		}
		return a.fail(err)
	}
	a.state.Answer = answer

	s.notifier.Notify(domain.AnswerNotification{
		QuestionID: answer.QuestionID,
		AnswerID:   answer.ID,
		ExpertID:   answer.ExpertID,
		Context:    req.QuestionContext,
	})

	a.advance(domain.StageComplete)
	a.logger.Info("submission complete", zap.String("answer_id", answer.ID.Hex()))
	return a.state
}

// validate checks everything that can be checked before any network call.
func (s *SubmissionService) validate(req SubmitRequest, seed resumeSeed) error {
	if req.QuestionID.IsZero() || req.ExpertID.IsZero() {
		return domain.ErrMissingOwnership
	}
	if s.opts.MaxAttachments > 0 && len(req.Attachments) > s.opts.MaxAttachments {
		return fmt.Errorf("%w: %d given, at most %d allowed", domain.ErrTooManyAttachments, len(req.Attachments), s.opts.MaxAttachments)
	}
	if !domain.HasContent(req.TextResponse, nil, len(req.Attachments)) && !req.Recording.Present() {
		return domain.ErrEmptyAnswer
	}

	rec := req.Recording
	if !rec.Present() {
		return nil
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("%w: unknown media kind %q", domain.ErrInvalidRecording, rec.Kind)
	}
	if len(rec.Segments) > 0 && len(rec.Uploaded) > 0 {
		return fmt.Errorf("%w: both new and uploaded segments given", domain.ErrInvalidRecording)
	}
	for i, d := range rec.Uploaded {
		if d.ID == "" {
			return fmt.Errorf("%w: uploaded segment %d has no id", domain.ErrInvalidRecording, i)
		}
	}
	if len(rec.Segments) > len(seed.segments) {
		// Something still has to be uploaded, so the backend must exist.
		if err := s.media.CheckBackend(rec.Kind); err != nil {
			return err
		}
	}
	return nil
}

// uploadMedia uploads the remaining segments in order and writes (or reuses) the asset record.
func (s *SubmissionService) uploadMedia(ctx context.Context, a *attempt, rec *domain.Recording, seed resumeSeed) (*domain.MediaAssetRecord, bool, error) {
	var segments []domain.MediaDescriptor
	if len(rec.Uploaded) > 0 {
		segments = append(segments, rec.Uploaded...)
		a.state.MediaResult = &domain.MediaResult{Segments: segments}
	} else {
		start := min(len(seed.segments), len(rec.Segments))
		segments = append(segments, seed.segments[:start]...)
		a.state.MediaResult = &domain.MediaResult{Segments: segments}
		if start > 0 {
			a.logger.Info("resuming media upload", zap.Int("already_uploaded", start), zap.Int("segments", len(rec.Segments)))
		}

		for i := start; i < len(rec.Segments); i++ {
			seg := rec.Segments[i]
			desc, err := s.media.UploadMedia(ctx, seg.Blob, rec.Kind, seg.DurationSeconds)
			if err != nil {
				return nil, false, err
			}
			segments = append(segments, *desc)
			a.state.MediaResult.Segments = segments
			a.emit()
		}
	}

	if seed.asset != nil && sameSegments(seed.asset.Segments, segments) {
		a.state.MediaResult.Asset = seed.asset
		return seed.asset, false, nil
	}

	asset, err := s.assets.WriteMediaAsset(ctx, segments, domain.TotalDuration(segments))
	if err != nil {
		return nil, false, err
	}
	a.state.MediaResult.Asset = asset
	a.emit()
	return asset, true, nil
}

// compensate deletes the asset this attempt wrote for an answer that was never created.
// The uploaded segments stay in the result so a resume only rewrites the record.
func (s *SubmissionService) compensate(a *attempt) {
	asset := a.state.MediaResult.Asset
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CompensationTimeout)
	defer cancel()

	if err := s.assets.DeleteMediaAsset(ctx, asset.ID); err != nil {
		a.logger.Error("orphaned media asset needs manual cleanup",
			zap.String("asset_id", asset.ID.Hex()),
			zap.Error(err),
		)
		return
	}
	a.logger.Info("deleted orphaned media asset", zap.String("asset_id", asset.ID.Hex()))
	a.state.MediaResult.Asset = nil
}

// resolveAttachments turns pending files that an earlier attempt already
// uploaded into uploaded attachments. Each earlier result is used once.
func resolveAttachments(items []domain.Attachment, prior []domain.AttachmentDescriptor) []domain.Attachment {
	if len(prior) == 0 {
		return items
	}
	passedThrough := make(map[string]bool)
	for _, item := range items {
		if d, ok := item.Uploaded(); ok {
			passedThrough[d.ID] = true
		}
	}
	byName := make(map[string][]domain.AttachmentDescriptor, len(prior))
	for _, d := range prior {
		if !passedThrough[d.ID] {
			byName[d.Filename] = append(byName[d.Filename], d)
		}
	}

	out := make([]domain.Attachment, len(items))
	for i, item := range items {
		out[i] = item
		if item.IsUploaded() {
			continue
		}
		if matches := byName[item.Filename()]; len(matches) > 0 {
			out[i] = domain.UploadedAttachment(matches[0])
			byName[item.Filename()] = matches[1:]
		}
	}
	return out
}

func sameSegments(a, b []domain.MediaDescriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
