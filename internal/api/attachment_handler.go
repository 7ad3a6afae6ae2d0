package api

import (
	"context"
	"errors"
	"net/http"

	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AttachmentService uploads attachments ahead of the answer they belong to.
type AttachmentService interface {
	UploadOne(ctx context.Context, file domain.Blob) (*domain.AttachmentDescriptor, error)
	PresignUpload(ctx context.Context, filename, mimeType string, size int64) (*storage.UploadTarget, *domain.AttachmentDescriptor, error)
}

type AttachmentHandler struct {
	attachments AttachmentService
	logger      *zap.Logger
}

func NewAttachmentHandler(attachments AttachmentService, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, logger: logger.Named("api.attachments")}
}

// --- DTOs ---
type UploadTargetRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	SizeBytes   int64  `json:"sizeBytes" binding:"gte=0"`
}

type UploadTargetResponse struct {
	Target     *storage.UploadTarget        `json:"target"`
	Attachment *domain.AttachmentDescriptor `json:"attachment"`
}

// UploadAttachment godoc
// @Summary Upload one attachment before submitting the answer
// @Description The returned descriptor can be sent back in uploaded_attachments.
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Success 201 {object} domain.AttachmentDescriptor
// @Failure 400 {object} gin.H "Missing file"
// @Failure 502 {object} gin.H "Upload failed"
// @Router /attachments [post]
func (h *AttachmentHandler) UploadAttachment(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Multipart field 'file' is required.")
		return
	}

	desc, err := h.attachments.UploadOne(c.Request.Context(), blobFromFileHeader(fh))
	if err != nil {
		h.logger.Warn("attachment upload failed", zap.String("filename", fh.Filename), zap.Error(err))
		abortWithError(c, uploadStatus(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, desc)
}

// CreateUploadTarget godoc
// @Summary Get a presigned URL for uploading an attachment directly to storage
// @Tags Attachments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UploadTargetRequest true "File details"
// @Success 201 {object} UploadTargetResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /attachments/upload-targets [post]
func (h *AttachmentHandler) CreateUploadTarget(c *gin.Context) {
	var req UploadTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	target, desc, err := h.attachments.PresignUpload(c.Request.Context(), req.Filename, req.ContentType, req.SizeBytes)
	if err != nil {
		h.logger.Warn("upload target request failed", zap.String("filename", req.Filename), zap.Error(err))
		abortWithError(c, uploadStatus(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, UploadTargetResponse{Target: target, Attachment: desc})
}

func uploadStatus(err error) int {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
