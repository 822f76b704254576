package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kripu77/prompt-map-sub001/internal/dto"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/metrics"
	"github.com/Kripu77/prompt-map-sub001/pkg/events"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

type threadHarness struct {
	svc       *threadService
	factory   *fakeFactory
	publisher *recordingPublisher
}

func newThreadHarness() *threadHarness {
	f := newFakeFactory()
	pub := &recordingPublisher{}
	svc := NewThreadService(f, pub, metrics.NewMetrics(), logger.NewNopLogger()).(*threadService)

	clock := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return &threadHarness{svc: svc, factory: f, publisher: pub}
}

func strPtr(s string) *string { return &s }

func TestThreadService_CreateAndShow(t *testing.T) {
	h := newThreadHarness()
	ctx := context.Background()
	owner := uuid.New()

	created, err := h.svc.Create(ctx, owner, &dto.CreateThreadRequest{
		Title:     "Volcanoes",
		Content:   volcanoMap,
		Reasoning: strPtr(""),
		Options:   &mindmap.GenerationOptions{Purpose: mindmap.PurposeTeaching},
	})
	require.NoError(t, err)
	assert.Nil(t, created.Reasoning, "empty reasoning is not stored")

	shown, err := h.svc.Show(ctx, owner, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Volcanoes", shown.Title)
	assert.Equal(t, mindmap.PurposeTeaching, shown.Options.Purpose)

	assert.Equal(t, []string{events.ThreadCreated}, h.publisher.types())
}

func TestThreadService_ForeignOwnerIsNotFound(t *testing.T) {
	h := newThreadHarness()
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	created, err := h.svc.Create(ctx, owner, &dto.CreateThreadRequest{Title: "Mine", Content: "# Mine"})
	require.NoError(t, err)

	_, err = h.svc.Show(ctx, stranger, created.Id)
	assert.Equal(t, http.StatusNotFound, appErrorCode(t, err))

	_, err = h.svc.Update(ctx, stranger, &dto.UpdateThreadRequest{Id: created.Id, Title: strPtr("Stolen")})
	assert.Equal(t, http.StatusNotFound, appErrorCode(t, err))

	err = h.svc.Delete(ctx, stranger, created.Id)
	assert.Equal(t, http.StatusNotFound, appErrorCode(t, err))

	still, err := h.svc.Show(ctx, owner, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "Mine", still.Title)
}

func TestThreadService_PartialUpdate(t *testing.T) {
	h := newThreadHarness()
	ctx := context.Background()
	owner := uuid.New()

	created, err := h.svc.Create(ctx, owner, &dto.CreateThreadRequest{
		Title:     "Draft",
		Content:   "# Draft",
		Reasoning: strPtr("initial plan"),
	})
	require.NoError(t, err)

	duration := 7
	updated, err := h.svc.Update(ctx, owner, &dto.UpdateThreadRequest{
		Id:                created.Id,
		Title:             strPtr("Final"),
		ReasoningDuration: &duration,
	})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "# Draft", updated.Content, "unset fields are kept")
	assert.Equal(t, "initial plan", *updated.Reasoning)
	assert.Equal(t, 7, *updated.ReasoningDuration)
	require.NotNil(t, updated.UpdatedAt)

	cleared, err := h.svc.Update(ctx, owner, &dto.UpdateThreadRequest{Id: created.Id, Reasoning: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.Reasoning)

	_, err = h.svc.Update(ctx, owner, &dto.UpdateThreadRequest{Id: created.Id})
	assert.Equal(t, http.StatusBadRequest, appErrorCode(t, err))
}

func TestThreadService_GetAllPaginatesNewestFirst(t *testing.T) {
	h := newThreadHarness()
	ctx := context.Background()
	owner := uuid.New()

	for _, title := range []string{"one", "two", "three"} {
		_, err := h.svc.Create(ctx, owner, &dto.CreateThreadRequest{Title: title, Content: "# " + title})
		require.NoError(t, err)
	}
	_, err := h.svc.Create(ctx, uuid.New(), &dto.CreateThreadRequest{Title: "other", Content: "# other"})
	require.NoError(t, err)

	page, err := h.svc.GetAll(ctx, owner, &dto.ListThreadsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "three", page.Items[0].Title)
	assert.Equal(t, "two", page.Items[1].Title)

	rest, err := h.svc.GetAll(ctx, owner, &dto.ListThreadsRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "one", rest.Items[0].Title)

	defaults, err := h.svc.GetAll(ctx, owner, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultThreadPageSize, defaults.Limit)
}

func TestThreadService_Delete(t *testing.T) {
	h := newThreadHarness()
	ctx := context.Background()
	owner := uuid.New()

	created, err := h.svc.Create(ctx, owner, &dto.CreateThreadRequest{Title: "Gone", Content: "# Gone"})
	require.NoError(t, err)
	require.NoError(t, h.svc.Delete(ctx, owner, created.Id))

	_, err = h.svc.Show(ctx, owner, created.Id)
	assert.Equal(t, http.StatusNotFound, appErrorCode(t, err))
	assert.Equal(t, []string{events.ThreadCreated, events.ThreadDeleted}, h.publisher.types())
}

func TestThreadService_CreateThreadFromDraft(t *testing.T) {
	h := newThreadHarness()
	ctx := context.Background()
	owner := uuid.New()

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'é'
	}
	err := h.svc.CreateThread(ctx, owner, mindmap.ThreadDraft{
		Title:             string(long),
		Content:           volcanoMap,
		Reasoning:         "why",
		ReasoningDuration: 3,
	})
	require.NoError(t, err)

	page, err := h.svc.GetAll(ctx, owner, nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Len(t, []rune(page.Items[0].Title), threadTitleMaxLength)
	assert.Equal(t, "why", *page.Items[0].Reasoning)
	assert.Equal(t, 3, *page.Items[0].ReasoningDuration)
}

func TestThreadService_PublishFailureIsNotFatal(t *testing.T) {
	h := newThreadHarness()
	h.publisher.err = errors.New("nats down")

	_, err := h.svc.Create(context.Background(), uuid.New(), &dto.CreateThreadRequest{Title: "Ok", Content: "# Ok"})
	assert.NoError(t, err)
}

func TestThreadService_PersistenceError(t *testing.T) {
	h := newThreadHarness()
	h.factory.uow.threads.failing = errors.New("db down")

	_, err := h.svc.Create(context.Background(), uuid.New(), &dto.CreateThreadRequest{Title: "x", Content: "# x"})
	assert.Equal(t, http.StatusInternalServerError, appErrorCode(t, err))
}
