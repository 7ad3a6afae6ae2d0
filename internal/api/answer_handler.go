package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AnswerPipeline is what the answer endpoints need from the service layer.
type AnswerPipeline interface {
	Submit(ctx context.Context, req service.SubmitRequest, opts ...service.SubmitOption) *domain.SubmissionState
	GetAnswer(ctx context.Context, id primitive.ObjectID) (*domain.Answer, error)
	ListAnswers(ctx context.Context, questionID primitive.ObjectID) ([]domain.Answer, error)
	GetMediaAsset(ctx context.Context, id primitive.ObjectID) (*domain.MediaAssetRecord, error)
}

type AnswerHandler struct {
	pipeline AnswerPipeline
	logger   *zap.Logger
}

func NewAnswerHandler(pipeline AnswerPipeline, logger *zap.Logger) *AnswerHandler {
	return &AnswerHandler{pipeline: pipeline, logger: logger.Named("api.answers")}
}

// SubmitAnswer godoc
// @Summary Submit an answer to a question
// @Description Uploads the recording segments and attachments, then creates the answer.
// @Tags Answers
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param questionId path string true "Question ID"
// @Success 201 {object} domain.SubmissionState "Answer submitted"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 502 {object} gin.H "Upload or database failure, partial results included"
// @Failure 503 {object} gin.H "Storage backend not configured"
// @Router /questions/{questionId}/answers [post]
func (h *AnswerHandler) SubmitAnswer(c *gin.Context) {
	expertID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify expert from token.")
		return
	}
	questionID, err := primitive.ObjectIDFromHex(c.Param("questionId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid question ID format.")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Expected multipart form: "+err.Error())
		return
	}

	req, err := buildSubmitRequest(form)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	req.QuestionID = questionID
	req.ExpertID = expertID

	state := h.pipeline.Submit(c.Request.Context(), req)
	if state.Stage == domain.StageComplete {
		c.JSON(http.StatusCreated, state)
		return
	}

	status := statusForError(state.Err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("answer submission failed",
			zap.String("question_id", questionID.Hex()),
			zap.String("expert_id", expertID.Hex()),
			zap.Error(state.Err),
		)
	}
	c.JSON(status, gin.H{"error": state.Error, "submission": state})
}

// GetAnswer godoc
// @Summary Get an answer
// @Tags Answers
// @Produce json
// @Security BearerAuth
// @Param answerId path string true "Answer ID"
// @Success 200 {object} domain.Answer
// @Failure 404 {object} gin.H "Answer not found"
// @Router /answers/{answerId} [get]
func (h *AnswerHandler) GetAnswer(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("answerId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid answer ID format.")
		return
	}
	answer, err := h.pipeline.GetAnswer(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err, service.ErrAnswerNotFound)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// ListAnswers godoc
// @Summary List the answers to a question
// @Tags Answers
// @Produce json
// @Security BearerAuth
// @Param questionId path string true "Question ID"
// @Success 200 {array} domain.Answer
// @Failure 400 {object} gin.H "Invalid question ID"
// @Router /questions/{questionId}/answers [get]
func (h *AnswerHandler) ListAnswers(c *gin.Context) {
	questionID, err := primitive.ObjectIDFromHex(c.Param("questionId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid question ID format.")
		return
	}
	answers, err := h.pipeline.ListAnswers(c.Request.Context(), questionID)
	if err != nil {
		h.logger.Error("failed to list answers", zap.String("question_id", questionID.Hex()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	c.JSON(http.StatusOK, answers)
}

// GetMediaAsset godoc
// @Summary Get a media asset with its ordered segments
// @Tags Answers
// @Produce json
// @Security BearerAuth
// @Param assetId path string true "Media asset ID"
// @Success 200 {object} domain.MediaAssetRecord
// @Failure 404 {object} gin.H "Media asset not found"
// @Router /media-assets/{assetId} [get]
func (h *AnswerHandler) GetMediaAsset(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("assetId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid media asset ID format.")
		return
	}
	asset, err := h.pipeline.GetMediaAsset(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err, service.ErrMediaAssetNotFound)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *AnswerHandler) respondLookupError(c *gin.Context, err, notFound error) {
	if errors.Is(err, notFound) {
		abortWithError(c, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("lookup failed", zap.String("path", c.FullPath()), zap.Error(err))
	abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
}

// buildSubmitRequest turns the multipart form into a SubmitRequest. Attachments are
// split into uploaded and pending here, once; uploaded ones come first.
func buildSubmitRequest(form *multipart.Form) (service.SubmitRequest, error) {
	var req service.SubmitRequest

	if text, ok := formValue(form, "text"); ok {
		req.TextResponse = &text
	}

	rec, err := buildRecording(form)
	if err != nil {
		return req, err
	}
	req.Recording = rec

	if raw, ok := formValue(form, "uploaded_attachments"); ok && strings.TrimSpace(raw) != "" {
		var descs []domain.AttachmentDescriptor
		if err := json.Unmarshal([]byte(raw), &descs); err != nil {
			return req, fmt.Errorf("uploaded_attachments: %w", err)
		}
		for _, d := range descs {
			if d.ID == "" || d.URL == "" {
				return req, errors.New("uploaded_attachments: every item needs id and url")
			}
			req.Attachments = append(req.Attachments, domain.UploadedAttachment(d))
		}
	}
	for _, fh := range form.File["attachments"] {
		req.Attachments = append(req.Attachments, domain.PendingAttachment(blobFromFileHeader(fh)))
	}

	if raw, ok := formValue(form, "asker_id"); ok && raw != "" {
		askerID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return req, errors.New("asker_id: invalid ID format")
		}
		req.QuestionContext.AskerID = askerID
	}
	req.QuestionContext.QuestionTitle, _ = formValue(form, "question_title")

	if raw, ok := formValue(form, "require_all_attachments"); ok && raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			return req, errors.New("require_all_attachments: expected a boolean")
		}
		req.RequireAllAttachments = strict
	}
	return req, nil
}

func buildRecording(form *multipart.Form) (*domain.Recording, error) {
	files := form.File["media"]
	rawSegments, _ := formValue(form, "media_segments")
	if len(files) == 0 && strings.TrimSpace(rawSegments) == "" {
		return nil, nil
	}

	kind, _ := formValue(form, "media_kind")
	rec := &domain.Recording{Kind: domain.MediaKind(strings.ToLower(strings.TrimSpace(kind)))}

	if strings.TrimSpace(rawSegments) != "" {
		if err := json.Unmarshal([]byte(rawSegments), &rec.Uploaded); err != nil {
			return nil, fmt.Errorf("media_segments: %w", err)
		}
	}

	durations := form.Value["media_durations"]
	if len(durations) > len(files) {
		return nil, fmt.Errorf("media_durations: %d durations for %d media files", len(durations), len(files))
	}
	for i, fh := range files {
		var seconds float64
		if i < len(durations) && durations[i] != "" {
			v, err := strconv.ParseFloat(durations[i], 64)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("media_durations[%d]: expected a non-negative number", i)
			}
			seconds = v
		}
		rec.Segments = append(rec.Segments, domain.MediaSegment{Blob: blobFromFileHeader(fh), DurationSeconds: seconds})
	}
	return rec, nil
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func blobFromFileHeader(fh *multipart.FileHeader) domain.Blob {
	return domain.Blob{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadSeekCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

// statusForError maps a failed submission to an HTTP status.
func statusForError(err error) int {
	var (
		cfgErr    *domain.ConfigurationError
		uploadErr *domain.UploadError
		assetErr  *domain.MediaAssetError
		subErr    *domain.SubmissionError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyAnswer),
		errors.Is(err, domain.ErrMissingOwnership),
		errors.Is(err, domain.ErrTooManyAttachments),
		errors.Is(err, domain.ErrInvalidRecording):
		return http.StatusBadRequest
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &uploadErr), errors.As(err, &assetErr), errors.As(err, &subErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
