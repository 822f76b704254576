package mindmap

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// pipeOpener hands out io.Pipe bodies so tests control when records arrive.
type pipeOpener struct {
	mu       sync.Mutex
	requests []GenerateRequest
	writers  []*io.PipeWriter
	ctxs     []context.Context
	err      error
	opened   chan struct{}
}

func newPipeOpener() *pipeOpener {
	return &pipeOpener{opened: make(chan struct{}, 16)}
}

func (p *pipeOpener) OpenStream(ctx context.Context, req GenerateRequest) (io.ReadCloser, error) {
	p.mu.Lock()
	defer func() {
		p.mu.Unlock()
		p.opened <- struct{}{}
	}()
	p.requests = append(p.requests, req)
	p.ctxs = append(p.ctxs, ctx)
	if p.err != nil {
		return nil, p.err
	}
	r, w := io.Pipe()
	p.writers = append(p.writers, w)
	return r, nil
}

func (p *pipeOpener) writer(i int) *io.PipeWriter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writers[i]
}

func (p *pipeOpener) ctx(i int) context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctxs[i]
}

func (p *pipeOpener) request(i int) GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

// staticOpener replays a fixed body for every request.
type staticOpener struct {
	body string
}

func (s staticOpener) OpenStream(ctx context.Context, req GenerateRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	requests []GenerateRequest
	// history observed at dispatch time
	seenHistory [][]PromptHistoryItem
	history     *History
	responses   []string
	err         error
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.history != nil {
		g.seenHistory = append(g.seenHistory, g.history.Items())
	}
	if g.err != nil {
		return nil, g.err
	}
	if len(g.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	content := g.responses[0]
	g.responses = g.responses[1:]
	return &GenerateResult{Content: content, Metadata: &Metadata{Title: ExtractTitle(content, req.Prompt)}}, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type fakeShift struct {
	mu       sync.Mutex
	results  []TopicShiftResult
	err      error
	payloads []PromptPayload
}

func (f *fakeShift) CheckShift(ctx context.Context, payload PromptPayload) (TopicShiftResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return TopicShiftResult{}, f.err
	}
	if len(f.results) == 0 {
		return TopicShiftResult{}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func (f *fakeShift) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeThreads struct {
	mu      sync.Mutex
	drafts  []ThreadDraft
	userIDs []uuid.UUID
	err     error
}

func (f *fakeThreads) CreateThread(ctx context.Context, userID uuid.UUID, draft ThreadDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)
	f.userIDs = append(f.userIDs, userID)
	return f.err
}

func (f *fakeThreads) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.drafts)
}

type fakeAnalytics struct {
	mu      sync.Mutex
	records []AnonymousRecord
	err     error
}

func (f *fakeAnalytics) RecordAnonymous(ctx context.Context, record AnonymousRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return f.err
}

func (f *fakeAnalytics) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (f *fakeNotifier) Notify(n Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
}

func (f *fakeNotifier) kinds() []NoticeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]NoticeKind, 0, len(f.notices))
	for _, n := range f.notices {
		out = append(out, n.Kind)
	}
	return out
}

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) log(msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Info(module, message string, details map[string]interface{}) {
	l.log(message)
}

func (l *recordingLogger) Warn(module, message string, details map[string]interface{}) {
	l.log(message)
}

func (l *recordingLogger) Error(module, message string, details map[string]interface{}) {
	l.log(message)
}

func (l *recordingLogger) contains(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == msg {
			return true
		}
	}
	return false
}
