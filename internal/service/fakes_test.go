package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"alcyxob/askexpert/internal/config"
	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/repository"
	"alcyxob/askexpert/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

type fakeBackend struct {
	mu     sync.Mutex
	calls  []string
	failAt map[int]error
}

func (b *fakeBackend) Upload(_ context.Context, blob domain.Blob, meta storage.MediaMetadata) (*domain.MediaDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.calls)
	b.calls = append(b.calls, blob.Filename)
	if err := b.failAt[n]; err != nil {
		return nil, err
	}
	return &domain.MediaDescriptor{
		ID:              "media-" + blob.Filename,
		PlaybackURL:     "https://media.example/" + blob.Filename,
		DurationSeconds: meta.DurationSeconds,
		Kind:            meta.Kind,
		SizeBytes:       blob.Size,
	}, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

type fakeFileStore struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	delay map[string]time.Duration
}

func (f *fakeFileStore) PutFile(ctx context.Context, file domain.Blob) (*domain.AttachmentDescriptor, error) {
	f.mu.Lock()
	f.calls = append(f.calls, file.Filename)
	err := f.fail[file.Filename]
	delay := f.delay[file.Filename]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.AttachmentDescriptor{
		ID:        "file-" + file.Filename,
		URL:       "https://files.example/" + file.Filename,
		Filename:  file.Filename,
		SizeBytes: file.Size,
		MimeType:  file.ContentType,
	}, nil
}

func (f *fakeFileStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFileStore) callsFor(filename string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == filename {
			n++
		}
	}
	return n
}

type fakeAssetRepo struct {
	mu        sync.Mutex
	created   []*domain.MediaAssetRecord
	deleted   []primitive.ObjectID
	createErr error
	deleteErr error
}

func (r *fakeAssetRepo) Create(_ context.Context, asset *domain.MediaAssetRecord) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return primitive.NilObjectID, r.createErr
	}
	asset.ID = primitive.NewObjectID()
	asset.CreatedAt = time.Now().UTC()
	r.created = append(r.created, asset)
	return asset.ID, nil
}

func (r *fakeAssetRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.MediaAssetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.created {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAssetRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deleted = append(r.deleted, id)
	return nil
}

type fakeAnswerRepo struct {
	mu        sync.Mutex
	calls     int
	created   []*domain.Answer
	createErr error
}

func (r *fakeAnswerRepo) Create(_ context.Context, answer *domain.Answer) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.createErr != nil {
		return primitive.NilObjectID, r.createErr
	}
	answer.ID = primitive.NewObjectID()
	answer.CreatedAt = time.Now().UTC()
	r.created = append(r.created, answer)
	return answer.ID, nil
}

func (r *fakeAnswerRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.created {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAnswerRepo) GetByQuestionID(_ context.Context, questionID primitive.ObjectID) ([]domain.Answer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Answer
	for _, a := range r.created {
		if a.QuestionID == questionID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []domain.AnswerNotification
}

func (n *fakeNotifier) Notify(note domain.AnswerNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

type harness struct {
	video    *fakeBackend
	files    *fakeFileStore
	assets   *fakeAssetRepo
	answers  *fakeAnswerRepo
	notifier *fakeNotifier
	cfg      config.PipelineConfig
	svc      *SubmissionService
}

func newHarness(t *testing.T, tweak ...func(*harness)) *harness {
	t.Helper()
	h := &harness{
		video:    &fakeBackend{},
		files:    &fakeFileStore{},
		assets:   &fakeAssetRepo{},
		answers:  &fakeAnswerRepo{},
		notifier: &fakeNotifier{},
		cfg: config.PipelineConfig{
			AttachmentWorkers: 3,
			MaxAttachments:    10,
			ThrottleAfter:     5,
			ThrottleDelay:     time.Millisecond,
			CompensateOrphans: true,
		},
	}
	for _, fn := range tweak {
		fn(h)
	}
	h.build(t, h.notifier)
	return h
}

func (h *harness) build(t *testing.T, notifier Notifier) {
	logger := zaptest.NewLogger(t)
	selector := storage.NewSelector()
	selector.Register(domain.MediaKindVideo, h.video)

	h.svc = NewSubmissionService(
		NewMediaUploader(selector, logger),
		NewAttachmentUploader(h.files, h.cfg, logger),
		NewAssetWriter(h.assets, logger),
		NewAnswerSubmitter(h.answers, logger),
		notifier,
		PipelineOptionsFromConfig(h.cfg),
		logger,
	)
}

func segment(name string, seconds float64) domain.MediaSegment {
	return domain.MediaSegment{
		Blob:            domain.BytesBlob(name, "video/webm", []byte("frames of "+name)),
		DurationSeconds: seconds,
	}
}

func pendingFile(name string) domain.Attachment {
	return domain.PendingAttachment(domain.BytesBlob(name, "application/pdf", []byte(fmt.Sprintf("%%PDF %s", name))))
}

func textPtr(s string) *string { return &s }

func baseRequest() SubmitRequest {
	return SubmitRequest{
		QuestionID: primitive.NewObjectID(),
		ExpertID:   primitive.NewObjectID(),
		QuestionContext: domain.QuestionContext{
			AskerID:       primitive.NewObjectID(),
			QuestionTitle: "How do I fix a leaking tap?",
		},
	}
}
