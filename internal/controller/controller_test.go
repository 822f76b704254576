package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kripu77/prompt-map-sub001/internal/dto"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap/wire"
)

const testSecret = "controller-secret"

type stubMindmapService struct {
	result    *mindmap.GenerateResult
	err       error
	shift     mindmap.TopicShiftResult
	streamed  mindmap.GenerateRequest
	generated mindmap.GenerateRequest
}

func (s *stubMindmapService) Generate(_ context.Context, req mindmap.GenerateRequest) (*mindmap.GenerateResult, error) {
	s.generated = req
	return s.result, s.err
}

func (s *stubMindmapService) Stream(_ context.Context, req mindmap.GenerateRequest, w io.Writer) error {
	s.streamed = req
	enc := wire.NewEncoder(w)
	_ = enc.WriteText("# Streamed\n")
	return enc.WriteFinish(wire.FinishStop)
}

func (s *stubMindmapService) CheckTopicShift(_ context.Context, _ dto.TopicShiftRequest) (mindmap.TopicShiftResult, error) {
	return s.shift, nil
}

type stubThreadService struct {
	owner  uuid.UUID
	thread *dto.ThreadResponse
}

func (s *stubThreadService) GetAll(_ context.Context, _ uuid.UUID, req *dto.ListThreadsRequest) (*dto.ThreadListResponse, error) {
	return &dto.ThreadListResponse{Items: []*dto.ThreadResponse{s.thread}, Total: 1, Limit: req.Limit, Offset: req.Offset}, nil
}

func (s *stubThreadService) Create(_ context.Context, _ uuid.UUID, req *dto.CreateThreadRequest) (*dto.ThreadResponse, error) {
	return &dto.ThreadResponse{Id: uuid.New(), Title: req.Title, Content: req.Content}, nil
}

func (s *stubThreadService) Show(_ context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ThreadResponse, error) {
	if userId != s.owner || id != s.thread.Id {
		return nil, serverutils.NewNotFoundError("Thread not found")
	}
	return s.thread, nil
}

func (s *stubThreadService) Update(_ context.Context, _ uuid.UUID, req *dto.UpdateThreadRequest) (*dto.ThreadResponse, error) {
	return &dto.ThreadResponse{Id: req.Id, Title: *req.Title}, nil
}

func (s *stubThreadService) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (s *stubThreadService) CreateThread(context.Context, uuid.UUID, mindmap.ThreadDraft) error {
	return nil
}

type stubAnalyticsService struct {
	got *dto.AnonymousMindmapRequest
	err error
}

func (s *stubAnalyticsService) Enqueue(_ context.Context, req *dto.AnonymousMindmapRequest) error {
	s.got = req
	return s.err
}

func (s *stubAnalyticsService) RecordAnonymous(context.Context, mindmap.AnonymousRecord) error {
	return nil
}

func (s *stubAnalyticsService) Consume(context.Context) error { return nil }

func newTestApp(register ...func(fiber.Router)) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: serverutils.ErrorHandlerMiddleware()})
	api := app.Group("/api")
	for _, r := range register {
		r(api)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, token string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestMindmapController_Generate(t *testing.T) {
	svc := &stubMindmapService{result: &mindmap.GenerateResult{
		Content:  "# Tides",
		Metadata: &mindmap.Metadata{Title: "Tides"},
	}}
	c := NewMindmapController(svc, time.Second, logger.NewNopLogger())
	app := newTestApp(c.RegisterRoutes)

	resp, body := doJSON(t, app, http.MethodPost, "/api/mindmap/v1/generate", map[string]any{
		"prompt":  "tides",
		"options": map[string]any{"userExpertise": "beginner"},
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "# Tides", data["content"])
	assert.Equal(t, mindmap.ExpertiseBeginner, svc.generated.Options.UserExpertise)
}

func TestMindmapController_GenerateValidation(t *testing.T) {
	c := NewMindmapController(&stubMindmapService{}, time.Second, logger.NewNopLogger())
	app := newTestApp(c.RegisterRoutes)

	resp, body := doJSON(t, app, http.MethodPost, "/api/mindmap/v1/generate", map[string]any{
		"prompt":  "",
		"options": map[string]any{"purpose": "fun"},
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errs := body["data"].(map[string]any)["errors"].([]any)
	require.NotEmpty(t, errs)
	assert.Equal(t, "prompt", errs[0].(map[string]any)["field"])

	req := httptest.NewRequest(http.MethodPost, "/api/mindmap/v1/generate", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	raw, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestMindmapController_GenerateUnprocessable(t *testing.T) {
	svc := &stubMindmapService{err: serverutils.NewUnprocessableError("Generated content is not a valid mind map", mindmap.ErrNoTitle)}
	c := NewMindmapController(svc, time.Second, logger.NewNopLogger())
	app := newTestApp(c.RegisterRoutes)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/mindmap/v1/generate", map[string]any{"prompt": "x"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestMindmapController_Stream(t *testing.T) {
	svc := &stubMindmapService{}
	c := NewMindmapController(svc, time.Second, logger.NewNopLogger())
	app := newTestApp(c.RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/api/mindmap/v1/stream", strings.NewReader(`{"prompt":"tides"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "v1", resp.Header.Get(wire.StreamHeader))
	assert.Equal(t, wire.ContentType, resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "0:\"# Streamed\\n\"\nd:{\"finishReason\":\"stop\"}\n", string(raw))
	assert.Equal(t, "tides", svc.streamed.Prompt)
}

func TestMindmapController_TopicShift(t *testing.T) {
	svc := &stubMindmapService{shift: mindmap.TopicShiftResult{IsTopicShift: true, Reason: "unrelated"}}
	c := NewMindmapController(svc, time.Second, logger.NewNopLogger())
	app := newTestApp(c.RegisterRoutes)

	resp, body := doJSON(t, app, http.MethodPost, "/api/mindmap/v1/topic-shift", map[string]any{
		"prompt":  "pizza",
		"context": map[string]any{"originalPrompt": "plants", "existingMindmap": "# Plants"},
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["isTopicShift"])

	resp, _ = doJSON(t, app, http.MethodPost, "/api/mindmap/v1/topic-shift", map[string]any{"prompt": "pizza"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestThreadController(t *testing.T) {
	owner := uuid.New()
	thread := &dto.ThreadResponse{Id: uuid.New(), Title: "Tides", Content: "# Tides"}
	c := NewThreadController(&stubThreadService{owner: owner, thread: thread}, testSecret)
	app := newTestApp(c.RegisterRoutes)

	token, err := serverutils.SignToken(owner, testSecret)
	require.NoError(t, err)

	t.Run("requires a token", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodGet, "/api/thread/v1", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("list with paging", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodGet, "/api/thread/v1?limit=5&offset=10", nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := body["data"].(map[string]any)
		assert.EqualValues(t, 5, data["limit"])
		assert.EqualValues(t, 10, data["offset"])
	})

	t.Run("invalid paging", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodGet, "/api/thread/v1?limit=1000", nil, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("create", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPost, "/api/thread/v1", map[string]any{"title": "New", "content": "# New"}, token)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "New", body["data"].(map[string]any)["title"])

		resp, _ = doJSON(t, app, http.MethodPost, "/api/thread/v1", map[string]any{"title": "No content"}, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("show", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodGet, "/api/thread/v1/"+thread.Id.String(), nil, token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, "/api/thread/v1/"+uuid.NewString(), nil, token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, "/api/thread/v1/not-a-uuid", nil, token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("update", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, "/api/thread/v1/"+thread.Id.String(), map[string]any{"title": "Renamed"}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Renamed", body["data"].(map[string]any)["title"])
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodDelete, "/api/thread/v1/"+thread.Id.String(), nil, token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestAnalyticsController(t *testing.T) {
	svc := &stubAnalyticsService{}
	c := NewAnalyticsController(svc, logger.NewNopLogger())
	app := newTestApp(c.RegisterRoutes)

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/v1/anonymous",
		strings.NewReader(`{"prompt":"tides","title":"Tides","sessionId":"s-9"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "unit-test")
	req.Header.Set("Referer", "https://promptmap.test/")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotNil(t, svc.got)
	assert.Equal(t, "unit-test", svc.got.UserAgent)
	assert.Equal(t, "https://promptmap.test/", svc.got.Referrer)

	svc.err = errors.New("queue closed")
	resp, _ = doJSON(t, app, http.MethodPost, "/api/analytics/v1/anonymous", map[string]any{"prompt": "again"}, "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, "queueing failures are not surfaced")

	resp, _ = doJSON(t, app, http.MethodPost, "/api/analytics/v1/anonymous", map[string]any{"title": "no prompt"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthController(t *testing.T) {
	app := newTestApp(NewHealthController("promptmap-api", "ollama").RegisterRoutes)

	resp, body := doJSON(t, app, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["data"].(map[string]any)["status"])
}
