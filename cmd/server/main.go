package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/askexpert/internal/api"
	"alcyxob/askexpert/internal/awsclient"
	"alcyxob/askexpert/internal/config"
	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/logging"
	"alcyxob/askexpert/internal/notify"
	"alcyxob/askexpert/internal/repository/mongo"
	"alcyxob/askexpert/internal/service"
	"alcyxob/askexpert/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Uploaded recordings can be large; anything above this spills to temp files.
const maxMultipartMemory = 32 << 20

// @title Ask-an-Expert Answer API
// @version 1.0
// @description API for submitting expert answers with recordings and attachments.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("could not load config: " + err.Error())
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic("could not build logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("configuration loaded", zap.String("address", cfg.Server.Address))

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal("could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		logger.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("database connection established", zap.String("database", cfg.Database.Name))

	go mongo.EnsureIndexes(appDB, logger)

	// --- AWS ---
	awsCtx, awsCancel := context.WithTimeout(context.Background(), 10*time.Second)
	sdkConfig, err := awsclient.LoadConfig(awsCtx, cfg.AWS)
	awsCancel()
	if err != nil {
		logger.Fatal("could not load AWS config", zap.Error(err))
	}
	s3Client := storage.NewS3Client(sdkConfig, cfg.AWS, cfg.S3)

	// --- Storage backends ---
	if err := cfg.S3.ValidateBucket("s3.attachments_bucket", cfg.S3.AttachmentsBucket); err != nil {
		logger.Fatal("attachment storage is required", zap.Error(err))
	}
	fileStore := storage.NewS3FileStore(
		storage.NewS3Storage(s3Client, cfg.S3.AttachmentsBucket, cfg.S3.PublicBaseURL, logger),
		logger,
	)

	selector := storage.NewSelector()
	if streamBackend, err := storage.NewStreamBackend(cfg.Stream, logger); err != nil {
		logger.Warn("video backend disabled", zap.Error(err))
	} else {
		selector.Register(domain.MediaKindVideo, streamBackend)
	}
	if err := cfg.S3.ValidateBucket("s3.audio_bucket", cfg.S3.AudioBucket); err != nil {
		logger.Warn("audio backend disabled", zap.Error(err))
	} else {
		audioStore := storage.NewS3Storage(s3Client, cfg.S3.AudioBucket, cfg.S3.PublicBaseURL, logger)
		selector.Register(domain.MediaKindAudio, storage.NewAudioBackend(audioStore, logger))
	}

	// --- Notifications ---
	var sender notify.Sender
	if err := cfg.Notify.Validate(); err != nil {
		logger.Warn("notification queue not configured, notifications are only logged", zap.Error(err))
		sender = notify.NewLogSender(logger)
	} else {
		sender = notify.NewSQSSender(notify.NewSQSClient(sdkConfig, cfg.AWS.SQSEndpoint), cfg.Notify.QueueURL, logger)
	}
	dispatcher := notify.NewDispatcher(sender, cfg.Notify.Timeout, logger)

	// --- Repositories & Services ---
	assetRepo := mongo.NewMongoMediaAssetRepository(appDB)
	answerRepo := mongo.NewMongoAnswerRepository(appDB)

	attachmentUploader := service.NewAttachmentUploader(fileStore, cfg.Pipeline, logger)
	submissionService := service.NewSubmissionService(
		service.NewMediaUploader(selector, logger),
		attachmentUploader,
		service.NewAssetWriter(assetRepo, logger),
		service.NewAnswerSubmitter(answerRepo, logger),
		dispatcher,
		service.PipelineOptionsFromConfig(cfg.Pipeline),
		logger,
	)

	// --- Gin Engine ---
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.MaxMultipartMemory = maxMultipartMemory
	api.SetupRoutes(router, cfg.JWT.Secret, submissionService, attachmentUploader, logger)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     router,
		ReadTimeout: 2 * time.Minute, // Multipart bodies carry recordings
		// Submissions upload every segment before responding.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := dispatcher.Shutdown(ctxShutdown); err != nil {
		logger.Warn("notifications still in flight at shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
