package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alcyxob/askexpert/internal/domain"
	"alcyxob/askexpert/internal/service"
	"alcyxob/askexpert/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

type fakePipeline struct {
	got     *service.SubmitRequest
	result  *domain.SubmissionState
	answer  *domain.Answer
	asset   *domain.MediaAssetRecord
	listErr error
}

func (f *fakePipeline) Submit(_ context.Context, req service.SubmitRequest, _ ...service.SubmitOption) *domain.SubmissionState {
	f.got = &req
	return f.result
}

func (f *fakePipeline) GetAnswer(_ context.Context, id primitive.ObjectID) (*domain.Answer, error) {
	if f.answer == nil || f.answer.ID != id {
		return nil, service.ErrAnswerNotFound
	}
	return f.answer, nil
}

func (f *fakePipeline) ListAnswers(_ context.Context, questionID primitive.ObjectID) ([]domain.Answer, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	answers := []domain.Answer{}
	if f.answer != nil && f.answer.QuestionID == questionID {
		answers = append(answers, *f.answer)
	}
	return answers, nil
}

func (f *fakePipeline) GetMediaAsset(_ context.Context, id primitive.ObjectID) (*domain.MediaAssetRecord, error) {
	if f.asset == nil || f.asset.ID != id {
		return nil, service.ErrMediaAssetNotFound
	}
	return f.asset, nil
}

type fakeAttachments struct {
	uploaded []string
	err      error
}

func (f *fakeAttachments) UploadOne(_ context.Context, file domain.Blob) (*domain.AttachmentDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	body, _ := io.ReadAll(r)
	f.uploaded = append(f.uploaded, string(body))
	return &domain.AttachmentDescriptor{ID: "att", URL: "https://files.example/att", Filename: file.Filename, SizeBytes: file.Size}, nil
}

func (f *fakeAttachments) PresignUpload(_ context.Context, filename, mimeType string, size int64) (*storage.UploadTarget, *domain.AttachmentDescriptor, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &storage.UploadTarget{UploadURL: "https://s3.example/put", ExpiresAt: time.Now().Add(time.Minute)},
		&domain.AttachmentDescriptor{ID: "att", URL: "https://files.example/att", Filename: filename, MimeType: mimeType, SizeBytes: size}, nil
}

func newTestRouter(t *testing.T, p *fakePipeline, a *fakeAttachments) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, testSecret, p, a, zaptest.NewLogger(t))
	return router
}

func signToken(t *testing.T, userID primitive.ObjectID, role domain.Role, ttl time.Duration) string {
	t.Helper()
	claims := jwtClaims{
		UserID: userID.Hex(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type formFile struct {
	field, name, contentType, body string
}

func multipartBody(t *testing.T, values map[string][]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="` + f.field + `"; filename="` + f.name + `"`}
		h["Content-Type"] = []string{f.contentType}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestSubmitAnswer_BuildsRequestFromForm(t *testing.T) {
	expertID := primitive.NewObjectID()
	questionID := primitive.NewObjectID()
	askerID := primitive.NewObjectID()
	p := &fakePipeline{result: &domain.SubmissionState{Stage: domain.StageComplete, Answer: &domain.Answer{ID: primitive.NewObjectID()}}}
	router := newTestRouter(t, p, &fakeAttachments{})

	body, contentType := multipartBody(t, map[string][]string{
		"text":                    {"thanks!"},
		"media_kind":              {"video"},
		"media_durations":         {"12", "8", "5"},
		"uploaded_attachments":    {`[{"id":"att-1","url":"https://files.example/a","filename":"diagram.png"}]`},
		"asker_id":                {askerID.Hex()},
		"question_title":          {"Leaking tap"},
		"require_all_attachments": {"true"},
	}, []formFile{
		{"media", "s1.webm", "video/webm", "one"},
		{"media", "s2.webm", "video/webm", "two"},
		{"media", "s3.webm", "video/webm", "three"},
		{"attachments", "notes.pdf", "application/pdf", "%PDF"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions/"+questionID.Hex()+"/answers", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+signToken(t, expertID, domain.RoleExpert, time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, p.got)
	got := p.got

	assert.Equal(t, questionID, got.QuestionID)
	assert.Equal(t, expertID, got.ExpertID)
	assert.Equal(t, "thanks!", *got.TextResponse)
	assert.Equal(t, askerID, got.QuestionContext.AskerID)
	assert.Equal(t, "Leaking tap", got.QuestionContext.QuestionTitle)
	assert.True(t, got.RequireAllAttachments)

	require.NotNil(t, got.Recording)
	assert.Equal(t, domain.MediaKindVideo, got.Recording.Kind)
	require.Len(t, got.Recording.Segments, 3)
	assert.Equal(t, "s1.webm", got.Recording.Segments[0].Blob.Filename)
	assert.Equal(t, 12.0, got.Recording.Segments[0].DurationSeconds)
	assert.Equal(t, "s3.webm", got.Recording.Segments[2].Blob.Filename)
	assert.Equal(t, 5.0, got.Recording.Segments[2].DurationSeconds)

	require.Len(t, got.Attachments, 2)
	assert.True(t, got.Attachments[0].IsUploaded())
	assert.Equal(t, "diagram.png", got.Attachments[0].Filename())
	assert.False(t, got.Attachments[1].IsUploaded())
	blob, ok := got.Attachments[1].Pending()
	require.True(t, ok)
	assert.Equal(t, "application/pdf", blob.ContentType)
}

func TestSubmitAnswer_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"empty answer", domain.ErrEmptyAnswer, http.StatusBadRequest},
		{"too many attachments", domain.ErrTooManyAttachments, http.StatusBadRequest},
		{"missing backend", &domain.ConfigurationError{Key: "stream.api_token"}, http.StatusServiceUnavailable},
		{"upload failed", &domain.UploadError{Op: "transfer", Err: errors.New("502")}, http.StatusBadGateway},
		{"asset write failed", &domain.MediaAssetError{Diagnostic: "duplicate key", Err: errors.New("write")}, http.StatusBadGateway},
		{"create failed", &domain.SubmissionError{Diagnostic: "validation", Err: errors.New("write")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePipeline{result: &domain.SubmissionState{Stage: domain.StageFailed, Err: tc.err, Error: tc.err.Error()}}
			router := newTestRouter(t, p, &fakeAttachments{})

			body, contentType := multipartBody(t, map[string][]string{"text": {"hi"}}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/questions/"+primitive.NewObjectID().Hex()+"/answers", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+signToken(t, primitive.NewObjectID(), domain.RoleExpert, time.Hour))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.err.Error(), resp["error"])
			assert.Contains(t, resp, "submission")
		})
	}
}

func TestSubmitAnswer_RejectsBadInput(t *testing.T) {
	p := &fakePipeline{}
	router := newTestRouter(t, p, &fakeAttachments{})
	token := signToken(t, primitive.NewObjectID(), domain.RoleExpert, time.Hour)

	t.Run("bad question id", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][]string{"text": {"hi"}}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/questions/not-an-id/answers", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("more durations than files", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][]string{
			"media_kind":      {"audio"},
			"media_durations": {"3", "4"},
		}, []formFile{{"media", "a.ogg", "audio/ogg", "x"}})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/questions/"+primitive.NewObjectID().Hex()+"/answers", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("uploaded attachment without url", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string][]string{
			"uploaded_attachments": {`[{"id":"x","filename":"x.pdf"}]`},
		}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/questions/"+primitive.NewObjectID().Hex()+"/answers", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	assert.Nil(t, p.got, "pipeline is not reached")
}

func TestAuth(t *testing.T) {
	router := newTestRouter(t, &fakePipeline{}, &fakeAttachments{})
	path := "/api/v1/questions/" + primitive.NewObjectID().Hex() + "/answers"

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"expired token", "Bearer " + signToken(t, primitive.NewObjectID(), domain.RoleExpert, -time.Minute), http.StatusUnauthorized},
		{"asker cannot answer", "Bearer " + signToken(t, primitive.NewObjectID(), domain.RoleAsker, time.Hour), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(""))
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGetAnswerAndAsset(t *testing.T) {
	answer := &domain.Answer{ID: primitive.NewObjectID(), QuestionID: primitive.NewObjectID()}
	asset := &domain.MediaAssetRecord{ID: primitive.NewObjectID(), Segments: []domain.MediaDescriptor{{ID: "a"}, {ID: "b"}}}
	router := newTestRouter(t, &fakePipeline{answer: answer, asset: asset}, &fakeAttachments{})
	token := "Bearer " + signToken(t, primitive.NewObjectID(), domain.RoleAsker, time.Hour)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/api/v1/answers/"+answer.ID.Hex()).Code)
	assert.Equal(t, http.StatusNotFound, get("/api/v1/answers/"+primitive.NewObjectID().Hex()).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/answers/xyz").Code)

	rec := get("/api/v1/media-assets/" + asset.ID.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.MediaAssetRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Segments, 2)
	assert.Equal(t, "a", got.Segments[0].ID)
}

func TestListAnswers(t *testing.T) {
	answer := &domain.Answer{ID: primitive.NewObjectID(), QuestionID: primitive.NewObjectID()}
	p := &fakePipeline{answer: answer}
	router := newTestRouter(t, p, &fakeAttachments{})
	token := "Bearer " + signToken(t, primitive.NewObjectID(), domain.RoleAsker, time.Hour)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/api/v1/questions/" + answer.QuestionID.Hex() + "/answers")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, answer.ID, got[0].ID)

	rec = get("/api/v1/questions/" + primitive.NewObjectID().Hex() + "/answers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get("/api/v1/questions/xyz/answers").Code)

	p.listErr = errors.New("connection reset")
	assert.Equal(t, http.StatusInternalServerError, get("/api/v1/questions/"+answer.QuestionID.Hex()+"/answers").Code)
}

func TestUploadAttachment(t *testing.T) {
	attachments := &fakeAttachments{}
	router := newTestRouter(t, &fakePipeline{}, attachments)
	token := "Bearer " + signToken(t, primitive.NewObjectID(), domain.RoleExpert, time.Hour)

	body, contentType := multipartBody(t, nil, []formFile{{"file", "Q3 report.pdf", "application/pdf", "%PDF-1.7"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var desc domain.AttachmentDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &desc))
	assert.Equal(t, "Q3 report.pdf", desc.Filename)
	assert.Equal(t, []string{"%PDF-1.7"}, attachments.uploaded)
}

func TestUploadAttachment_Failure(t *testing.T) {
	router := newTestRouter(t, &fakePipeline{}, &fakeAttachments{err: &domain.UploadError{Op: "put object", Err: errors.New("denied")}})
	body, contentType := multipartBody(t, nil, []formFile{{"file", "a.pdf", "application/pdf", "x"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+signToken(t, primitive.NewObjectID(), domain.RoleExpert, time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCreateUploadTarget(t *testing.T) {
	router := newTestRouter(t, &fakePipeline{}, &fakeAttachments{})
	token := "Bearer " + signToken(t, primitive.NewObjectID(), domain.RoleExpert, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attachments/upload-targets",
		strings.NewReader(`{"filename":"plan.pdf","contentType":"application/pdf","sizeBytes":1024}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp UploadTargetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://s3.example/put", resp.Target.UploadURL)
	assert.Equal(t, "plan.pdf", resp.Attachment.Filename)

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/attachments/upload-targets", strings.NewReader(`{"filename":""}`))
	bad.Header.Set("Content-Type", "application/json")
	bad.Header.Set("Authorization", token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
