package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"alcyxob/askexpert/internal/config"
	"alcyxob/askexpert/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// s3API is the subset of *s3.Client the storage layer calls.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// presignAPI is the subset of *s3.PresignClient the storage layer calls.
type presignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// s3Storage implements the ObjectStorage interface using an S3-compatible backend.
type s3Storage struct {
	client        s3API      // Regular client for operations like PutObject
	presignClient presignAPI // Special client for generating presigned URLs
	bucketName    string
	publicBaseURL string
	logger        *zap.Logger
}

// NewS3Client creates the S3 client shared by every bucket the service writes to.
func NewS3Client(sdkConfig aws.Config, awsConfig config.AWSConfig, s3Config config.S3Config) *s3.Client {
	return s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if awsConfig.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(awsConfig.S3Endpoint)
		}
		// Path-style addressing is required by most S3-compatible services (like MinIO)
		o.UsePathStyle = s3Config.UsePathStyle
	})
}

// NewS3Storage creates a new S3 storage service instance bound to one bucket.
func NewS3Storage(client *s3.Client, bucketName, publicBaseURL string, logger *zap.Logger) ObjectStorage {
	logger.Info("S3 storage initialized", zap.String("bucket", bucketName))
	return newS3Storage(client, s3.NewPresignClient(client), bucketName, publicBaseURL, logger)
}

func newS3Storage(client s3API, presignClient presignAPI, bucketName, publicBaseURL string, logger *zap.Logger) *s3Storage {
	return &s3Storage{
		client:        client,
		presignClient: presignClient,
		bucketName:    bucketName,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With(zap.String("bucket", bucketName)),
	}
}

// PutObject uploads body in a single request.
func (s *s3Storage) PutObject(ctx context.Context, objectKey, contentType string, body io.ReadSeeker, size int64) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		s.logger.Error("put object failed", zap.String("key", objectKey), zap.Error(err))
		return "", uploadErrorFromAWS("put object", objectKey, err)
	}
	// An ETag is the only proof the object landed; treat its absence as a bad response.
	if out == nil || aws.ToString(out.ETag) == "" {
		return "", &domain.UploadError{Op: "put object", Target: objectKey, Err: errMalformedResponse}
	}

	return aws.ToString(out.ETag), nil
}

// ObjectURL returns the public URL when configured, otherwise a long-lived presigned GET URL.
func (s *s3Storage) ObjectURL(ctx context.Context, objectKey string) (string, error) {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + objectKey, nil
	}
	return s.GeneratePresignedDownloadURL(ctx, objectKey, MaxPresignedURLExpiry)
}

// GeneratePresignedUploadURL creates a temporary URL for uploading (PUT).
func (s *s3Storage) GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}

	presignParams := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType), // Client MUST set this header on upload
	}

	req, err := s.presignClient.PresignPutObject(ctx, presignParams, s3.WithPresignExpires(expires))
	if err != nil {
		s.logger.Error("failed to generate presigned PUT URL", zap.String("key", objectKey), zap.Error(err))
		return "", err
	}

	return req.URL, nil
}

// GeneratePresignedDownloadURL creates a temporary URL for downloading (GET).
func (s *s3Storage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}

	presignParams := &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	}

	req, err := s.presignClient.PresignGetObject(ctx, presignParams, s3.WithPresignExpires(expires))
	if err != nil {
		s.logger.Error("failed to generate presigned GET URL", zap.String("key", objectKey), zap.Error(err))
		return "", err
	}

	return req.URL, nil
}

// uploadErrorFromAWS keeps the service-reported error code when there is one.
func uploadErrorFromAWS(op, target string, err error) *domain.UploadError {
	upErr := &domain.UploadError{Op: op, Target: target, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		upErr.Code = apiErr.ErrorCode()
	}
	return upErr
}
