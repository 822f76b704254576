package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/metrics"
	"github.com/Kripu77/prompt-map-sub001/pkg/events"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

func startHub(t *testing.T) (*Hub, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics()
	hub := NewHub(nil, m, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, m
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error {
	return errors.New("bus down")
}

func TestHub_RelayReachesEveryDeviceOfTheUser(t *testing.T) {
	hub, m := startHub(t)
	userID := uuid.New()
	session := NewSession("s1", &userID, Collaborators{}, logger.NewNopLogger())

	phone := NewClient(hub, newFakeConn(), userID, session, logger.NewNopLogger())
	laptop := NewClient(hub, newFakeConn(), userID, session, logger.NewNopLogger())
	stranger := NewClient(hub, newFakeConn(), uuid.New(), session, logger.NewNopLogger())
	anonymous := NewClient(hub, newFakeConn(), uuid.Nil, session, logger.NewNopLogger())
	for _, c := range []*Client{phone, laptop, stranger, anonymous} {
		hub.Register(c)
	}
	require.Eventually(t, func() bool { return hub.Connections(userID) == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return hub.Connections(uuid.Nil) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.WorkspaceConnections) == 4 }, waitFor, tick)

	threadID := uuid.New()
	relay := hub.Relay(failingPublisher{})
	err := relay.Publish(context.Background(), events.NewThreadEvent(
		events.ThreadCreated, threadID.String(), userID.String(), "Volcanoes", time.Now(),
	))
	assert.EqualError(t, err, "bus down", "the bus error still surfaces")

	for _, c := range []*Client{phone, laptop} {
		select {
		case data := <-c.Send:
			assert.Contains(t, string(data), `"type":"thread"`)
			assert.Contains(t, string(data), threadID.String())
			assert.Contains(t, string(data), events.ThreadCreated)
		default:
			t.Fatal("expected a thread frame")
		}
	}
	assert.Empty(t, stranger.Send)
	assert.Empty(t, anonymous.Send)

	hub.Unregister(laptop)
	hub.Unregister(anonymous)
	require.Eventually(t, func() bool { return hub.Connections(userID) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return testutil.ToFloat64(m.WorkspaceConnections) == 2 }, waitFor, tick)
}

func TestClient_EnqueueAfterCloseIsDropped(t *testing.T) {
	session := NewSession("s1", nil, Collaborators{}, logger.NewNopLogger())
	c := NewClient(nil, newFakeConn(), uuid.Nil, session, logger.NewNopLogger())

	c.push(Frame{Type: FrameNotice, Data: mindmap.Notice{Kind: mindmap.NoticeStopped}})
	assert.Len(t, c.Send, 1)

	c.close()
	c.push(Frame{Type: FrameNotice})
	assert.Len(t, c.Send, 1)
}

func TestWorkspace_ServeAndResume(t *testing.T) {
	hub, _ := startHub(t)
	store := NewSessionStore(time.Minute)
	gen := &fakeGenerator{content: volcanoMap}
	ws := NewWorkspace(hub, store, Collaborators{Generator: gen}, logger.NewNopLogger())

	conn := newFakeConn()
	served := make(chan struct{})
	go func() {
		ws.Serve(conn, Peer{UserAgent: "test"})
		close(served)
	}()

	require.Eventually(t, func() bool { return conn.hasFrame(FrameSession) }, waitFor, tick)
	sessionID := conn.written()[0].Data.(map[string]interface{})["sessionId"].(string)

	conn.send(t, Command{Type: CommandPrompt, Prompt: "volcanoes"})
	require.Eventually(t, func() bool {
		s, ok := store.Get(sessionID)
		return ok && s.Orchestrator().State().Snapshot().MindmapData == volcanoMap
	}, waitFor, tick)

	conn.in <- []byte("not json")
	require.Eventually(t, func() bool { return conn.hasFrame(FrameError) }, waitFor, tick)

	close(conn.in)
	select {
	case <-served:
	case <-time.After(waitFor):
		t.Fatal("Serve did not return after the connection closed")
	}

	s, ok := store.Get(sessionID)
	require.True(t, ok, "the session outlives its connection")
	assert.False(t, s.Attached())

	// same peer resumes; a different user cannot
	again := newFakeConn()
	go ws.Serve(again, Peer{SessionID: sessionID})
	require.Eventually(t, func() bool { return again.hasFrame(FrameState) }, waitFor, tick)
	first := again.written()[0].Data.(map[string]interface{})
	assert.Equal(t, sessionID, first["sessionId"])
	assert.Equal(t, true, first["resumed"])

	intruder := newFakeConn()
	go ws.Serve(intruder, Peer{UserID: uuid.New(), SessionID: sessionID})
	require.Eventually(t, func() bool { return intruder.hasFrame(FrameSession) }, waitFor, tick)
	other := intruder.written()[0].Data.(map[string]interface{})
	assert.NotEqual(t, sessionID, other["sessionId"])
	assert.Equal(t, false, other["resumed"])

	again.Close()
	intruder.Close()
}

func TestWorkspace_AttachedSessionSurvivesIdleTTL(t *testing.T) {
	hub, _ := startHub(t)
	store := NewSessionStore(60 * time.Millisecond)
	ws := NewWorkspace(hub, store, Collaborators{Generator: &fakeGenerator{content: volcanoMap}}, logger.NewNopLogger())

	conn := newFakeConn()
	served := make(chan struct{})
	go func() {
		ws.Serve(conn, Peer{})
		close(served)
	}()

	require.Eventually(t, func() bool { return conn.hasFrame(FrameSession) }, waitFor, tick)
	sessionID := conn.written()[0].Data.(map[string]interface{})["sessionId"].(string)
	conn.send(t, Command{Type: CommandPrompt, Prompt: "volcanoes"})

	time.Sleep(200 * time.Millisecond)
	s, ok := store.Get(sessionID)
	require.True(t, ok)
	assert.False(t, s.Closed())
	assert.Equal(t, volcanoMap, s.Orchestrator().State().Snapshot().MindmapData)

	close(conn.in)
	<-served
	require.Eventually(t, func() bool {
		_, ok := store.Get(sessionID)
		return !ok && s.Closed()
	}, waitFor, tick)
}
