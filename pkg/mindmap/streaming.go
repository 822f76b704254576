package mindmap

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap/wire"
)

// progressWordTarget is the word count treated as a "full" mind map.
const progressWordTarget = 200

// maxStreamingProgress caps the estimate until the stream has really ended.
const maxStreamingProgress = 95

var ownerSeq atomic.Uint64

func nextOwnerID() uint64 {
	return ownerSeq.Add(1)
}

type Progress struct {
	WordCount         int     `json:"wordCount"`
	EstimatedProgress float64 `json:"estimatedProgress"`
}

// StreamingState describes one streaming session.
type StreamingState struct {
	AccumulatedText string   `json:"accumulatedText"`
	IsStreaming     bool     `json:"isStreaming"`
	IsComplete      bool     `json:"isComplete"`
	Error           string   `json:"error,omitempty"`
	Progress        Progress `json:"progress"`
}

// EstimateProgress maps a word count to a 0..95 percentage.
func EstimateProgress(wordCount int) float64 {
	p := float64(wordCount) / progressWordTarget * 100
	return math.Min(p, maxStreamingProgress)
}

// CompletionFunc runs after a stream ended naturally and its content was committed.
type CompletionFunc func(ctx context.Context, req GenerateRequest, result *GenerateResult)

type StreamerConfig struct {
	Opener     StreamOpener
	State      *State
	Notifier   Notifier
	OnUpdate   func(StreamingState)
	OnComplete CompletionFunc
	Now        func() time.Time
}

// Streamer owns at most one active streaming session.
type Streamer struct {
	opener     StreamOpener
	state      *State
	notifier   Notifier
	onUpdate   func(StreamingState)
	onComplete CompletionFunc
	now        func() time.Time

	startMu sync.Mutex
	mu      sync.Mutex
	current *StreamHandle
}

func NewStreamer(cfg StreamerConfig) *Streamer {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Streamer{
		opener:     cfg.Opener,
		state:      cfg.State,
		notifier:   cfg.Notifier,
		onUpdate:   cfg.OnUpdate,
		onComplete: cfg.OnComplete,
		now:        now,
	}
}

// Start begins a streaming generation, cancelling any session in flight.
// The cancelled session's content is discarded.
func (s *Streamer) Start(ctx context.Context, prompt string, options *GenerationOptions, followUp *FollowUpContext) (*StreamHandle, error) {
	return s.start(ctx, GenerateRequest{Prompt: prompt, Options: options, Context: followUp}, 0)
}

// start optionally takes over State ownership from heldBy (the Orchestrator).
func (s *Streamer) start(ctx context.Context, req GenerateRequest, heldBy uint64) (*StreamHandle, error) {
	if s.opener == nil {
		return nil, ErrStreamingUnavailable
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.DiscardActive()

	owner := nextOwnerID()
	claimed := heldBy != 0 && s.state.TransferGeneration(heldBy, owner)
	if !claimed {
		if err := s.state.BeginGeneration(owner); err != nil {
			return nil, err
		}
	}
	s.state.SetPrompt(req.Prompt)

	// The session outlives the caller's request scope; only Stop/Reset or a
	// newer session end it.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &StreamHandle{
		streamer:  s,
		owner:     owner,
		req:       req,
		ctx:       sessionCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: s.now(),
		st:        StreamingState{IsStreaming: true},
	}
	s.mu.Lock()
	s.current = h
	s.mu.Unlock()

	h.publish()
	go h.run()
	return h, nil
}

// Current returns the active session, if any.
func (s *Streamer) Current() *StreamHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// StopActive stops the active session, keeping partial content.
func (s *Streamer) StopActive() bool {
	h := s.Current()
	if h == nil {
		return false
	}
	h.Stop()
	return true
}

// DiscardActive cancels the active session without committing anything.
func (s *Streamer) DiscardActive() {
	s.mu.Lock()
	h := s.current
	s.current = nil
	s.mu.Unlock()
	if h != nil {
		h.discard()
	}
}

func (s *Streamer) release(h *StreamHandle) {
	s.mu.Lock()
	if s.current == h {
		s.current = nil
	}
	s.mu.Unlock()
}

// StreamHandle controls one streaming session.
type StreamHandle struct {
	streamer  *Streamer
	owner     uint64
	req       GenerateRequest
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	mu            sync.Mutex
	st            StreamingState
	text          strings.Builder
	reasoning     strings.Builder
	firstTextAt   time.Time
	terminated    bool
	body          io.ReadCloser
	closeBodyOnce sync.Once
}

// State returns a copy of the streaming state.
func (h *StreamHandle) State() StreamingState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.st
}

func (h *StreamHandle) Prompt() string {
	return h.req.Prompt
}

// Done is closed once the session reached its terminal step.
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the terminal step or ctx expiry.
func (h *StreamHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop aborts the network call. Partial text, if any, is committed to State;
// the completion hook is not run.
func (h *StreamHandle) Stop() {
	h.terminate(func() {
		partial := h.text.String()
		h.st.IsStreaming = false
		committed := h.streamer.state.EndGeneration(h.owner, func(s *Snapshot) {
			if partial != "" {
				s.MindmapData = partial
			}
		})
		if !committed || h.streamer.notifier == nil {
			return
		}
		if partial != "" {
			h.streamer.notifier.Notify(Notice{Kind: NoticeStopped, Message: "Generation stopped. Partial content has been kept."})
		} else {
			h.streamer.notifier.Notify(Notice{Kind: NoticeStopped, Message: "Generation stopped."})
		}
	}, nil)
}

// Reset aborts without committing and clears the streaming state.
func (h *StreamHandle) Reset() {
	h.discard()
	h.mu.Lock()
	h.st = StreamingState{}
	h.text.Reset()
	h.reasoning.Reset()
	h.mu.Unlock()
	h.publish()
}

func (h *StreamHandle) discard() {
	h.terminate(func() {
		h.st.IsStreaming = false
		h.streamer.state.EndGeneration(h.owner, nil)
	}, nil)
}

// terminate runs the terminal step exactly once, under the handle lock.
// after, if set, runs outside the lock before Done is closed.
func (h *StreamHandle) terminate(step func(), after func()) bool {
	h.mu.Lock()
	if h.terminated {
		h.mu.Unlock()
		return false
	}
	h.terminated = true
	h.cancel()
	step()
	h.mu.Unlock()

	h.closeBody()
	h.streamer.release(h)
	if after != nil {
		after()
	}
	close(h.done)
	h.publish()
	return true
}

func (h *StreamHandle) closeBody() {
	h.mu.Lock()
	body := h.body
	h.mu.Unlock()
	if body == nil {
		return
	}
	h.closeBodyOnce.Do(func() { _ = body.Close() })
}

func (h *StreamHandle) publish() {
	if h.streamer.onUpdate == nil {
		return
	}
	h.streamer.onUpdate(h.State())
}

func (h *StreamHandle) run() {
	body, err := h.streamer.opener.OpenStream(h.ctx, h.req)
	if err != nil {
		h.fail(err)
		return
	}

	h.mu.Lock()
	h.body = body
	stopped := h.terminated
	h.mu.Unlock()
	if stopped {
		h.closeBody()
		return
	}
	defer h.closeBody()

	dec := wire.NewDecoder(body)
	for {
		if h.ctx.Err() != nil {
			return
		}
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.fail(err)
			return
		}

		switch rec.Prefix {
		case wire.PrefixText:
			if !h.appendText(rec.Text) {
				return
			}
		case wire.PrefixReasoning:
			h.mu.Lock()
			if !h.terminated {
				h.reasoning.WriteString(rec.Text)
			}
			h.mu.Unlock()
		case wire.PrefixError:
			h.fail(errors.New(rec.Text))
			return
		case wire.PrefixFinish:
			// end of data; EOF follows
		}
	}

	if h.ctx.Err() != nil {
		return
	}
	h.complete()
}

func (h *StreamHandle) appendText(chunk string) bool {
	h.mu.Lock()
	if h.terminated {
		h.mu.Unlock()
		return false
	}
	if h.firstTextAt.IsZero() {
		h.firstTextAt = h.streamer.now()
	}
	h.text.WriteString(chunk)
	h.st.AccumulatedText = h.text.String()
	words := WordCount(h.st.AccumulatedText)
	h.st.Progress = Progress{WordCount: words, EstimatedProgress: EstimateProgress(words)}
	h.mu.Unlock()

	h.publish()
	return true
}

func (h *StreamHandle) fail(err error) {
	msg := err.Error()
	h.terminate(func() {
		h.st.IsStreaming = false
		h.st.Error = msg
		h.streamer.state.EndGeneration(h.owner, func(s *Snapshot) {
			s.Error = msg
		})
	}, nil)
}

var errEmptyStream = errors.New("the model returned an empty response")

func (h *StreamHandle) complete() {
	var (
		result    *GenerateResult
		committed bool
	)
	h.mu.Lock()
	empty := strings.TrimSpace(h.text.String()) == ""
	h.mu.Unlock()
	if empty {
		h.fail(errEmptyStream)
		return
	}

	h.terminate(func() {
		content := h.text.String()
		reasoning := strings.TrimSpace(h.reasoning.String())

		h.st.IsStreaming = false
		h.st.IsComplete = true
		h.st.Progress.EstimatedProgress = 100

		committed = h.streamer.state.EndGeneration(h.owner, func(s *Snapshot) {
			s.MindmapData = content
			s.Error = ""
		})

		meta := &Metadata{
			Title:      ExtractTitle(content, h.req.Prompt),
			WordCount:  h.st.Progress.WordCount,
			NodeCount:  CountNodes(ParseOutline(content)),
			IsFollowUp: h.req.Context != nil,
			Reasoning:  reasoning,
		}
		if reasoning != "" && !h.firstTextAt.IsZero() {
			meta.ReasoningDuration = int(h.firstTextAt.Sub(h.startedAt).Round(time.Second) / time.Second)
		}
		result = &GenerateResult{Content: content, Metadata: meta}
	}, func() {
		if committed && h.streamer.onComplete != nil {
			h.streamer.onComplete(context.WithoutCancel(h.ctx), h.req, result)
		}
	})
}
