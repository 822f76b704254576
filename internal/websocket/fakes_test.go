package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap/wire"
)

const (
	volcanoMap = "# Volcanoes\n## Types\n### Shield"
	waitFor    = 2 * time.Second
	tick       = 5 * time.Millisecond
)

// fakeGenerator returns content; when gate is set it blocks until released.
type fakeGenerator struct {
	content string
	gate    chan struct{}

	mu      sync.Mutex
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, req mindmap.GenerateRequest) (*mindmap.GenerateResult, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, req.Prompt)
	g.mu.Unlock()
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &mindmap.GenerateResult{Content: g.content, Metadata: &mindmap.Metadata{Title: "Volcanoes"}}, nil
}

func (g *fakeGenerator) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// staticOpener streams fixed text chunks followed by a stop record.
type staticOpener struct {
	chunks []string
}

func (o *staticOpener) OpenStream(context.Context, mindmap.GenerateRequest) (io.ReadCloser, error) {
	var buf bytes.Buffer
	enc := wire.NewEncoder(&buf)
	for _, c := range o.chunks {
		if err := enc.WriteText(c); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteFinish(wire.FinishStop); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

type fakeShift struct {
	result mindmap.TopicShiftResult
}

func (f *fakeShift) CheckShift(context.Context, mindmap.PromptPayload) (mindmap.TopicShiftResult, error) {
	return f.result, nil
}

type fakeThreads struct {
	mu     sync.Mutex
	drafts map[uuid.UUID][]mindmap.ThreadDraft
}

func (f *fakeThreads) CreateThread(_ context.Context, userID uuid.UUID, draft mindmap.ThreadDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.drafts == nil {
		f.drafts = make(map[uuid.UUID][]mindmap.ThreadDraft)
	}
	f.drafts[userID] = append(f.drafts[userID], draft)
	return nil
}

func (f *fakeThreads) saved(userID uuid.UUID) []mindmap.ThreadDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mindmap.ThreadDraft(nil), f.drafts[userID]...)
}

type fakeAnalytics struct {
	mu      sync.Mutex
	records []mindmap.AnonymousRecord
}

func (f *fakeAnalytics) RecordAnonymous(_ context.Context, r mindmap.AnonymousRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func (f *fakeAnalytics) all() []mindmap.AnonymousRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mindmap.AnonymousRecord(nil), f.records...)
}

// frameSink collects the frames a session emits.
type frameSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (s *frameSink) push(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *frameSink) all() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

func (s *frameSink) ofType(typ string) []Frame {
	var out []Frame
	for _, f := range s.all() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// await waits for a frame of typ matching pred.
func (s *frameSink) await(t *testing.T, typ string, pred func(Frame) bool) Frame {
	t.Helper()
	var found Frame
	require.Eventually(t, func() bool {
		for _, f := range s.ofType(typ) {
			if pred == nil || pred(f) {
				found = f
				return true
			}
		}
		return false
	}, waitFor, tick, "no %q frame arrived", typ)
	return found
}

// fakeConn feeds queued messages to readPump and records writes.
type fakeConn struct {
	in     chan []byte
	mu     sync.Mutex
	writes [][]byte
	types  []int
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

var errConnClosed = errors.New("connection closed")

func (c *fakeConn) SetReadLimit(int64) {}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetPongHandler(func(appData string) error) {}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return 0, nil, errConnClosed
		}
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, messageType)
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, cmd Command) {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	c.in <- data
}

// written decodes every text frame written so far.
func (c *fakeConn) written() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Frame
	for i, data := range c.writes {
		if c.types[i] != 1 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) hasFrame(typ string) bool {
	for _, f := range c.written() {
		if f.Type == typ {
			return true
		}
	}
	return false
}
