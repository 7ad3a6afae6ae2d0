package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"alcyxob/askexpert/internal/config"
	"alcyxob/askexpert/internal/domain"

	"go.uber.org/zap"
)

// playbackURLFormat derives an HLS manifest URL from the customer code and video id.
const playbackURLFormat = "https://customer-%s.cloudflarestream.com/%s/manifest/video.m3u8"

// StreamBackend uploads video recordings to the streaming-video service.
// Each upload is two calls: obtain a one-time upload target, then transfer the bytes.
type StreamBackend struct {
	httpClient   *http.Client
	apiBaseURL   string
	accountID    string
	apiToken     string
	customerCode string
	maxDuration  int
	logger       *zap.Logger
}

// NewStreamBackend fails with a ConfigurationError when credentials are missing.
func NewStreamBackend(cfg config.StreamConfig, logger *zap.Logger) (*StreamBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &StreamBackend{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		apiBaseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		accountID:    cfg.AccountID,
		apiToken:     cfg.APIToken,
		customerCode: cfg.CustomerCode,
		maxDuration:  cfg.MaxDurationSeconds,
		logger:       logger.With(zap.String("backend", "stream")),
	}, nil
}

// StreamUploadTarget is the one-time URL the video bytes go to.
type StreamUploadTarget struct {
	UploadURL string
	ID        string
}

type streamAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type directUploadResponse struct {
	Success bool             `json:"success"`
	Errors  []streamAPIError `json:"errors"`
	Result  *struct {
		UploadURL string `json:"uploadURL"`
		UID       string `json:"uid"`
	} `json:"result"`
}

// RequestUploadTarget asks the service for a direct-upload URL.
func (b *StreamBackend) RequestUploadTarget(ctx context.Context, maxDurationSeconds int) (*StreamUploadTarget, error) {
	const op = "request upload target"

	payload, err := json.Marshal(map[string]int{"maxDurationSeconds": maxDurationSeconds})
	if err != nil {
		return nil, &domain.UploadError{Op: op, Err: err}
	}

	reqURL := fmt.Sprintf("%s/accounts/%s/stream/direct_upload", b.apiBaseURL, b.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.UploadError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+b.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UploadError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var body directUploadResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !body.Success {
		upErr := &domain.UploadError{Op: op, Code: fmt.Sprintf("http_%d", resp.StatusCode)}
		if len(body.Errors) > 0 {
			upErr.Code = fmt.Sprintf("%d", body.Errors[0].Code)
			upErr.Err = errors.New(body.Errors[0].Message)
		} else {
			upErr.Err = fmt.Errorf("unexpected status %s", resp.Status)
		}
		return nil, upErr
	}
	if decodeErr != nil {
		return nil, &domain.UploadError{Op: op, Err: fmt.Errorf("%w: %v", errMalformedResponse, decodeErr)}
	}
	if body.Result == nil || body.Result.UploadURL == "" || body.Result.UID == "" {
		return nil, &domain.UploadError{Op: op, Err: errMalformedResponse}
	}

	return &StreamUploadTarget{UploadURL: body.Result.UploadURL, ID: body.Result.UID}, nil
}

// Transfer posts the blob as multipart form data to a target from RequestUploadTarget.
func (b *StreamBackend) Transfer(ctx context.Context, uploadURL string, blob domain.Blob) error {
	const op = "transfer video"

	src, err := blob.Open()
	if err != nil {
		return &domain.UploadError{Op: op, Target: blob.Filename, Err: err}
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	// The writer goroutine owns src; Transfer returns only after it has exited.
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer src.Close()
		part, err := form.CreateFormFile("file", sanitizeFilename(blob.Filename))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()
	defer func() {
		pr.Close()
		<-done
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		return &domain.UploadError{Op: op, Target: blob.Filename, Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return &domain.UploadError{Op: op, Target: blob.Filename, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.UploadError{
			Op:     op,
			Target: blob.Filename,
			Code:   fmt.Sprintf("http_%d", resp.StatusCode),
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return nil
}

// PlaybackURL is derived from the customer code and id; no lookup is needed.
func (b *StreamBackend) PlaybackURL(id string) string {
	return fmt.Sprintf(playbackURLFormat, b.customerCode, id)
}

// Upload runs both calls. A target without a successful transfer counts as a failure.
func (b *StreamBackend) Upload(ctx context.Context, blob domain.Blob, meta MediaMetadata) (*domain.MediaDescriptor, error) {
	target, err := b.RequestUploadTarget(ctx, b.maxDuration)
	if err != nil {
		b.logger.Warn("upload target request failed", zap.Error(err))
		return nil, err
	}

	if err := b.Transfer(ctx, target.UploadURL, blob); err != nil {
		b.logger.Warn("video transfer failed", zap.String("id", target.ID), zap.Error(err))
		return nil, err
	}

	b.logger.Debug("video segment stored", zap.String("id", target.ID), zap.Int64("size", blob.Size))

	return &domain.MediaDescriptor{
		ID:              target.ID,
		PlaybackURL:     b.PlaybackURL(target.ID),
		DurationSeconds: nonNegative(meta.DurationSeconds),
		Kind:            domain.MediaKindVideo,
		SizeBytes:       nonNegativeSize(blob.Size),
	}, nil
}
