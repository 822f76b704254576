package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

const sessionModule = "WorkspaceSession"

const (
	busyMessage          = "A mind map is already being generated. Wait for it to finish or stop it first."
	unknownChoiceMessage = "Unknown decision. Use new, continue or dismiss."
	unknownTypeMessage   = "Unknown command type"
)

// Collaborators are the server-side implementations a session drives.
type Collaborators struct {
	Generator mindmap.Generator
	Streams   mindmap.StreamOpener
	Shift     mindmap.ShiftChecker
	Threads   mindmap.ThreadPersister
	Analytics mindmap.AnonymousRecorder
}

// Session is one workspace: an Orchestrator plus the socket currently
// attached to it. It outlives its connection so a client can resume it.
type Session struct {
	ID     string
	UserID *uuid.UUID

	orch   *mindmap.Orchestrator
	logger logger.ILogger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	out      func(Frame)
	identity mindmap.Identity
	// stream mode of the prompt waiting on a topic shift decision
	pendingStream bool

	busy atomic.Bool
	wg   sync.WaitGroup
}

func NewSession(id string, userID *uuid.UUID, deps Collaborators, log logger.ILogger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       id,
		UserID:   userID,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
		identity: mindmap.Identity{UserID: userID, SessionID: id},
	}

	effects := mindmap.SideEffects{Notifier: s}
	if deps.Threads != nil {
		effects.Threads = deps.Threads
	}
	if deps.Analytics != nil {
		effects.Analytics = deps.Analytics
	}

	s.orch = mindmap.NewOrchestrator(mindmap.Config{
		Generator: deps.Generator,
		Shift:     deps.Shift,
		Streams:   deps.Streams,
		Effects:   effects,
		Identity:  s.Identity,
		Logger:    log,
		OnStreamUpdate: func(st mindmap.StreamingState) {
			s.emit(Frame{Type: FrameStream, Data: st})
		},
		OnStatus: func(st mindmap.Status) {
			s.emit(Frame{Type: FrameStatus, Data: st})
		},
	})
	s.orch.State().Subscribe(func(snap mindmap.Snapshot) {
		s.emit(Frame{Type: FrameState, Data: snap})
	})
	return s
}

func (s *Session) Orchestrator() *mindmap.Orchestrator {
	return s.orch
}

// Identity is read by the Applying step of every generation.
func (s *Session) Identity() mindmap.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Notify implements mindmap.Notifier.
func (s *Session) Notify(n mindmap.Notice) {
	s.emit(Frame{Type: FrameNotice, Data: n})
}

// Attach routes frames to out and replays the current state. It fails when
// another connection already holds the session.
func (s *Session) Attach(out func(Frame), userAgent, referrer string, resumed bool) bool {
	s.mu.Lock()
	if s.out != nil {
		s.mu.Unlock()
		return false
	}
	s.out = out
	s.identity.UserAgent = userAgent
	s.identity.Referrer = referrer
	s.mu.Unlock()

	out(Frame{Type: FrameSession, Data: SessionData{SessionID: s.ID, Resumed: resumed}})
	out(Frame{Type: FrameState, Data: s.orch.State().Snapshot()})
	out(Frame{Type: FrameStatus, Data: s.orch.Status()})
	if h := s.orch.Streamer(); h != nil {
		if cur := h.Current(); cur != nil {
			out(Frame{Type: FrameStream, Data: cur.State()})
		}
	}
	return true
}

// Detach drops the connection. Running generations keep going and land in
// State for the next Attach.
func (s *Session) Detach() {
	s.mu.Lock()
	s.out = nil
	s.mu.Unlock()
}

func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out != nil
}

// Close cancels in-flight work and discards any active stream.
func (s *Session) Close() {
	s.cancel()
	s.orch.Reset()
}

func (s *Session) Closed() bool {
	return s.ctx.Err() != nil
}

// Wait blocks until every command goroutine has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) emit(f Frame) {
	s.mu.Lock()
	out := s.out
	s.mu.Unlock()
	if out != nil {
		out(f)
	}
}

// Handle executes one client command. Generation commands run in the
// background; everything else completes before Handle returns.
func (s *Session) Handle(cmd Command) {
	switch cmd.Type {
	case CommandPrompt:
		s.handlePrompt(cmd)
	case CommandDecision:
		s.handleDecision(cmd.Choice)
	case CommandStop:
		s.orch.StopStream()
	case CommandReset:
		s.orch.Reset()
	case CommandOptions:
		s.handleOptions(cmd.Options)
	default:
		s.emit(errorFrame(unknownTypeMessage))
	}
}

// acceptPrompt is the isLoading gate. Any prompt may replace an active
// stream; a buffered generation has to finish first.
func (s *Session) acceptPrompt() bool {
	if s.busy.Load() {
		return false
	}
	if !s.orch.State().Snapshot().IsLoading {
		return true
	}
	h := s.orch.Streamer()
	return h != nil && h.Current() != nil
}

func (s *Session) handlePrompt(cmd Command) {
	// empty prompts are left to the orchestrator
	if strings.TrimSpace(cmd.Prompt) != "" {
		if err := serverutils.ValidateRequest(&mindmap.GenerateRequest{Prompt: cmd.Prompt}); err != nil {
			s.emit(validationFrame(err))
			return
		}
	}
	if !s.acceptPrompt() || !s.busy.CompareAndSwap(false, true) {
		s.emit(errorFrame(busyMessage))
		return
	}
	s.mu.Lock()
	s.pendingStream = cmd.Stream
	s.mu.Unlock()

	s.background(func() {
		if cmd.Stream {
			_, out, err := s.orch.SubmitStreaming(s.ctx, cmd.Prompt)
			s.report(cmd.Prompt, out, err)
			return
		}
		out, err := s.orch.Submit(s.ctx, cmd.Prompt)
		s.report(cmd.Prompt, out, err)
	})
}

func (s *Session) handleDecision(choice string) {
	if choice == ChoiceDismiss {
		if err := s.orch.DismissShift(); err != nil {
			s.emit(errorFrame(err.Error()))
		}
		return
	}
	if choice != ChoiceNew && choice != ChoiceContinue {
		s.emit(errorFrame(unknownChoiceMessage))
		return
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.emit(errorFrame(busyMessage))
		return
	}

	s.mu.Lock()
	stream := s.pendingStream
	s.mu.Unlock()
	prompt := s.orch.Status().PendingPrompt

	s.background(func() {
		var (
			out mindmap.Outcome
			err error
		)
		switch {
		case choice == ChoiceNew && stream:
			_, out, err = s.orch.StartNewTopicStreaming(s.ctx)
		case choice == ChoiceNew:
			out, err = s.orch.StartNewTopic(s.ctx)
		case stream:
			_, out, err = s.orch.ContinueAnywayStreaming(s.ctx)
		default:
			out, err = s.orch.ContinueAnyway(s.ctx)
		}
		s.report(prompt, out, err)
	})
}

func (s *Session) handleOptions(opts *mindmap.GenerationOptions) {
	if opts != nil {
		if err := serverutils.ValidateRequest(opts); err != nil {
			s.emit(validationFrame(err))
			return
		}
	}
	s.orch.SetOptions(opts)
}

func validationFrame(err error) Frame {
	data := ErrorData{Message: err.Error()}
	var appErr *serverutils.AppError
	if errors.As(err, &appErr) {
		data = ErrorData{Message: appErr.Message, Errors: appErr.Errors}
	}
	return Frame{Type: FrameError, Data: data}
}

func (s *Session) background(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)
		fn()
	}()
}

// report turns an Outcome into frames. Generation failures already reached
// the client through the state frame, so only rejected commands become error
// frames.
func (s *Session) report(prompt string, out mindmap.Outcome, err error) {
	switch {
	case err == nil && out.TopicShiftDetected:
		s.emit(Frame{Type: FrameTopicShift, Data: TopicShiftData{Prompt: prompt, Reason: out.ShiftReason}})
	case errors.Is(err, mindmap.ErrEmptyPrompt),
		errors.Is(err, mindmap.ErrNoPendingPrompt),
		errors.Is(err, mindmap.ErrGenerationInProgress),
		errors.Is(err, mindmap.ErrStreamingUnavailable):
		s.emit(errorFrame(err.Error()))
	case err != nil:
		s.logger.Warn(sessionModule, "Generation failed", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
	}
}
