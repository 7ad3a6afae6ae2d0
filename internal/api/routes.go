package api

import (
	"net/http"

	"alcyxob/askexpert/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	pipeline AnswerPipeline,
	attachments AttachmentService,
	logger *zap.Logger,
) {
	answerHandler := NewAnswerHandler(pipeline, logger)
	attachmentHandler := NewAttachmentHandler(attachments, logger)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	protected := router.Group("/api/v1")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role})
		})

		// POST /api/v1/questions/{questionId}/answers
		protected.POST("/questions/:questionId/answers", RoleMiddleware(domain.RoleExpert), answerHandler.SubmitAnswer)
		// GET /api/v1/questions/{questionId}/answers
		protected.GET("/questions/:questionId/answers", answerHandler.ListAnswers)

		// GET /api/v1/answers/{answerId}
		protected.GET("/answers/:answerId", answerHandler.GetAnswer)
		// GET /api/v1/media-assets/{assetId}
		protected.GET("/media-assets/:assetId", answerHandler.GetMediaAsset)

		attachmentGroup := protected.Group("/attachments")
		attachmentGroup.Use(RoleMiddleware(domain.RoleExpert))
		{
			// POST /api/v1/attachments (multipart "file")
			attachmentGroup.POST("", attachmentHandler.UploadAttachment)
			// POST /api/v1/attachments/upload-targets
			attachmentGroup.POST("/upload-targets", attachmentHandler.CreateUploadTarget)
		}
	}
}
