package mindmap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is the Orchestrator's position in the generation workflow.
type Phase string

const (
	PhaseIdle                  Phase = "idle"
	PhaseCheckingShift         Phase = "checking_shift"
	PhaseAwaitingShiftDecision Phase = "awaiting_shift_decision"
	PhaseGenerating            Phase = "generating"
	PhaseApplying              Phase = "applying"
)

// Logger is the subset of the service logger the workflow needs.
type Logger interface {
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

const logModule = "Orchestrator"

// Status is a read-only view of the workflow flags.
type Status struct {
	Phase              Phase               `json:"phase"`
	IsUserGenerated    bool                `json:"isUserGenerated"`
	IsFollowUpMode     bool                `json:"isFollowUpMode"`
	TopicShiftDetected bool                `json:"topicShiftDetected"`
	PendingPrompt      string              `json:"pendingPrompt,omitempty"`
	ShiftReason        string              `json:"shiftReason,omitempty"`
	History            []PromptHistoryItem `json:"history"`
}

// Outcome reports how a submission ended.
type Outcome struct {
	Generated          bool
	TopicShiftDetected bool
	ShiftReason        string
	Result             *GenerateResult
}

// SideEffects are the Applying-step collaborators. Any of them may be nil.
type SideEffects struct {
	Threads   ThreadPersister
	Analytics AnonymousRecorder
	Notifier  Notifier
}

type Config struct {
	State     *State
	History   *History
	Generator Generator
	Shift     ShiftChecker
	Streams   StreamOpener
	Effects   SideEffects
	Identity  func() Identity
	Logger    Logger
	Now       func() time.Time
	// OnStreamUpdate receives every streaming state change.
	OnStreamUpdate func(StreamingState)
	// OnStatus receives the workflow status after every transition.
	OnStatus func(Status)
}

// Orchestrator sequences payload building, the topic-shift gate, generation
// and the Applying side effects for one mind map session.
type Orchestrator struct {
	state     *State
	history   *History
	generator Generator
	shift     ShiftChecker
	effects   SideEffects
	identity  func() Identity
	logger    Logger
	now       func() time.Time
	onStatus  func(Status)
	streamer  *Streamer

	mu                 sync.Mutex
	phase              Phase
	isUserGenerated    bool
	isFollowUpMode     bool
	topicShiftDetected bool
	pendingPrompt      string
	shiftReason        string
	options            *GenerationOptions
	cycle              uint64

	effectsWG sync.WaitGroup
}

func NewOrchestrator(cfg Config) *Orchestrator {
	o := &Orchestrator{
		state:     cfg.State,
		history:   cfg.History,
		generator: cfg.Generator,
		shift:     cfg.Shift,
		effects:   cfg.Effects,
		identity:  cfg.Identity,
		logger:    cfg.Logger,
		now:       cfg.Now,
		onStatus:  cfg.OnStatus,
		phase:     PhaseIdle,
	}
	if o.state == nil {
		o.state = NewState()
	}
	if o.history == nil {
		o.history = NewHistory()
	}
	if o.identity == nil {
		o.identity = func() Identity { return Identity{} }
	}
	if o.now == nil {
		o.now = time.Now
	}
	if cfg.Streams != nil {
		o.streamer = NewStreamer(StreamerConfig{
			Opener:     cfg.Streams,
			State:      o.state,
			Notifier:   cfg.Effects.Notifier,
			OnUpdate:   cfg.OnStreamUpdate,
			OnComplete: o.onStreamComplete,
			Now:        o.now,
		})
	}
	return o
}

func (o *Orchestrator) State() *State {
	return o.state
}

func (o *Orchestrator) Streamer() *Streamer {
	return o.streamer
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	return Status{
		Phase:              o.phase,
		IsUserGenerated:    o.isUserGenerated,
		IsFollowUpMode:     o.isFollowUpMode,
		TopicShiftDetected: o.topicShiftDetected,
		PendingPrompt:      o.pendingPrompt,
		ShiftReason:        o.shiftReason,
		History:            o.history.Items(),
	}
}

func (o *Orchestrator) SetOptions(opts *GenerationOptions) {
	o.mu.Lock()
	o.options = opts
	o.mu.Unlock()
}

// Seed installs machine-generated content (e.g. a welcome map). Seeded
// content never triggers a topic-shift check.
func (o *Orchestrator) Seed(content string) {
	o.state.SetMindmapData(content)
	o.mu.Lock()
	o.isUserGenerated = false
	o.isFollowUpMode = false
	o.mu.Unlock()
	o.emitStatus()
}

// Reset returns to a blank session and cancels any stream.
func (o *Orchestrator) Reset() {
	if o.streamer != nil {
		o.streamer.DiscardActive()
	}
	o.history.Clear()
	o.state.Reset()
	o.mu.Lock()
	o.phase = PhaseIdle
	o.isUserGenerated = false
	o.isFollowUpMode = false
	o.clearShiftLocked()
	o.mu.Unlock()
	o.emitStatus()
}

// Submit runs the buffered pipeline for prompt. A follow-up is assumed
// whenever the current map was generated by the user.
func (o *Orchestrator) Submit(ctx context.Context, prompt string) (Outcome, error) {
	return o.run(ctx, prompt, o.followUpMode(), true)
}

// SubmitStreaming runs the same gate, then hands generation to the Streamer.
// The returned handle is nil when the pipeline halted for a topic shift.
func (o *Orchestrator) SubmitStreaming(ctx context.Context, prompt string) (*StreamHandle, Outcome, error) {
	if o.streamer == nil {
		return nil, Outcome{}, ErrStreamingUnavailable
	}
	return o.runStreaming(ctx, prompt, o.followUpMode(), true)
}

// StartNewTopic resolves a pending topic shift by starting a fresh map.
func (o *Orchestrator) StartNewTopic(ctx context.Context) (Outcome, error) {
	prompt, err := o.takePending()
	if err != nil {
		return Outcome{}, err
	}
	o.history.Clear()
	o.mu.Lock()
	o.isFollowUpMode = false
	o.mu.Unlock()
	return o.run(ctx, prompt, false, false)
}

// ContinueAnyway resolves a pending topic shift by extending the current map.
// The check already ran for this prompt, so it is skipped.
func (o *Orchestrator) ContinueAnyway(ctx context.Context) (Outcome, error) {
	prompt, err := o.takePending()
	if err != nil {
		return Outcome{}, err
	}
	o.logInfo("Continuing past topic shift", map[string]interface{}{"prompt": prompt})
	return o.run(ctx, prompt, true, false)
}

// StartNewTopicStreaming and ContinueAnywayStreaming are the streaming variants.
func (o *Orchestrator) StartNewTopicStreaming(ctx context.Context) (*StreamHandle, Outcome, error) {
	if o.streamer == nil {
		return nil, Outcome{}, ErrStreamingUnavailable
	}
	prompt, err := o.takePending()
	if err != nil {
		return nil, Outcome{}, err
	}
	o.history.Clear()
	o.mu.Lock()
	o.isFollowUpMode = false
	o.mu.Unlock()
	return o.runStreaming(ctx, prompt, false, false)
}

func (o *Orchestrator) ContinueAnywayStreaming(ctx context.Context) (*StreamHandle, Outcome, error) {
	if o.streamer == nil {
		return nil, Outcome{}, ErrStreamingUnavailable
	}
	prompt, err := o.takePending()
	if err != nil {
		return nil, Outcome{}, err
	}
	o.logInfo("Continuing past topic shift", map[string]interface{}{"prompt": prompt})
	return o.runStreaming(ctx, prompt, true, false)
}

// DismissShift drops the pending prompt without generating anything.
func (o *Orchestrator) DismissShift() error {
	if _, err := o.takePending(); err != nil {
		return err
	}
	o.emitStatus()
	return nil
}

// StopStream stops the active stream, keeping partial content.
func (o *Orchestrator) StopStream() bool {
	if o.streamer == nil {
		return false
	}
	return o.streamer.StopActive()
}

// WaitSideEffects blocks until every dispatched Applying step has finished.
func (o *Orchestrator) WaitSideEffects() {
	o.effectsWG.Wait()
}

func (o *Orchestrator) followUpMode() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isUserGenerated
}

func (o *Orchestrator) takePending() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase != PhaseAwaitingShiftDecision || o.pendingPrompt == "" {
		return "", ErrNoPendingPrompt
	}
	prompt := o.pendingPrompt
	o.clearShiftLocked()
	o.phase = PhaseIdle
	return prompt, nil
}

func (o *Orchestrator) clearShiftLocked() {
	o.topicShiftDetected = false
	o.pendingPrompt = ""
	o.shiftReason = ""
}

// prepare claims the State, records history, and consults the gate. It
// returns halted=true when the pipeline stopped for a topic-shift decision.
func (o *Orchestrator) prepare(ctx context.Context, prompt string, isFollowUp, checkShift bool) (owner uint64, payload PromptPayload, halted bool, out Outcome, err error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return 0, payload, false, out, ErrEmptyPrompt
	}

	o.mu.Lock()
	if o.phase == PhaseAwaitingShiftDecision {
		// a fresh submission supersedes an unanswered decision
		o.clearShiftLocked()
	}
	o.mu.Unlock()

	owner = nextOwnerID()
	if err := o.state.BeginGeneration(owner); err != nil {
		return 0, payload, false, out, err
	}
	o.mu.Lock()
	o.cycle++
	o.mu.Unlock()

	snap := o.state.Snapshot()
	rootPrompt, _ := o.history.RootPrompt()
	if rootPrompt == "" {
		rootPrompt = snap.Prompt
	}
	history := o.history.Items()

	o.mu.Lock()
	shouldCheck := checkShift && isFollowUp && o.isUserGenerated && o.shift != nil
	o.mu.Unlock()

	if shouldCheck {
		o.setPhase(PhaseCheckingShift)
		checkPayload := BuildPayload(prompt, true, history, rootPrompt, snap.MindmapData, true)
		result, err := o.shift.CheckShift(ctx, checkPayload)
		if err != nil {
			o.logWarn("Topic shift check failed, continuing", map[string]interface{}{"error": err.Error()})
			result = TopicShiftResult{IsTopicShift: false, Reason: "Topic shift analysis failed: " + err.Error()}
		}
		if result.IsTopicShift {
			o.state.EndGeneration(owner, nil)
			o.mu.Lock()
			o.phase = PhaseAwaitingShiftDecision
			o.topicShiftDetected = true
			o.pendingPrompt = prompt
			o.shiftReason = result.Reason
			o.mu.Unlock()
			o.emitStatus()
			o.logInfo("Topic shift detected", map[string]interface{}{"prompt": prompt, "reason": result.Reason})
			return 0, payload, true, Outcome{TopicShiftDetected: true, ShiftReason: result.Reason}, nil
		}
	}

	// history is recorded before dispatch so readers see the in-flight prompt
	o.history.Append(PromptHistoryItem{
		Prompt:     prompt,
		Timestamp:  o.now().UnixMilli(),
		IsFollowUp: isFollowUp,
	})
	o.state.SetPrompt(prompt)

	payload = BuildPayload(prompt, isFollowUp, o.history.Items(), rootPrompt, snap.MindmapData, false)
	o.setPhase(PhaseGenerating)
	return owner, payload, false, out, nil
}

func (o *Orchestrator) run(ctx context.Context, prompt string, isFollowUp, checkShift bool) (Outcome, error) {
	if o.streamer != nil {
		o.streamer.DiscardActive()
	}

	owner, payload, halted, out, err := o.prepare(ctx, prompt, isFollowUp, checkShift)
	if err != nil || halted {
		return out, err
	}

	req := GenerateRequest{Prompt: payload.Prompt, Context: payload.Context, Options: o.currentOptions()}
	result, err := o.generator.Generate(ctx, req)
	if err == nil && (result == nil || strings.TrimSpace(result.Content) == "") {
		err = errEmptyStream
	}
	if err != nil {
		msg := fmt.Sprintf("Failed to generate mind map: %v", err)
		o.state.EndGeneration(owner, func(s *Snapshot) { s.Error = msg })
		o.setPhase(PhaseIdle)
		o.logError("Generation failed", map[string]interface{}{"prompt": req.Prompt, "error": err.Error()})
		return Outcome{}, fmt.Errorf("generate mind map: %w", err)
	}

	if !o.state.EndGeneration(owner, func(s *Snapshot) {
		s.MindmapData = result.Content
		s.Error = ""
	}) {
		// superseded by a reset or a newer flow
		return Outcome{}, nil
	}
	o.markGenerated()
	o.apply(ctx, req, result)
	return Outcome{Generated: true, Result: result}, nil
}

func (o *Orchestrator) runStreaming(ctx context.Context, prompt string, isFollowUp, checkShift bool) (*StreamHandle, Outcome, error) {
	// a new cycle cancels whatever is still streaming
	o.streamer.DiscardActive()

	owner, payload, halted, out, err := o.prepare(ctx, prompt, isFollowUp, checkShift)
	if err != nil || halted {
		return nil, out, err
	}

	req := GenerateRequest{Prompt: payload.Prompt, Context: payload.Context, Options: o.currentOptions()}
	o.mu.Lock()
	cycle := o.cycle
	o.mu.Unlock()

	h, err := o.streamer.start(ctx, req, owner)
	if err != nil {
		o.state.EndGeneration(owner, nil)
		o.setPhase(PhaseIdle)
		return nil, Outcome{}, err
	}
	go o.settle(h, cycle)
	return h, Outcome{}, nil
}

// settle returns to Idle once a stream from the given cycle has ended,
// whether it completed, failed or was stopped.
func (o *Orchestrator) settle(h *StreamHandle, cycle uint64) {
	<-h.Done()
	if st := h.State(); st.Error != "" {
		o.logError("Streaming generation failed", map[string]interface{}{"prompt": h.Prompt(), "error": st.Error})
	}
	o.mu.Lock()
	if o.cycle != cycle || o.phase == PhaseAwaitingShiftDecision {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseIdle
	o.mu.Unlock()
	o.emitStatus()
}

func (o *Orchestrator) onStreamComplete(ctx context.Context, req GenerateRequest, result *GenerateResult) {
	o.markGenerated()
	o.apply(ctx, req, result)
}

func (o *Orchestrator) markGenerated() {
	o.mu.Lock()
	o.isUserGenerated = true
	o.isFollowUpMode = true
	o.mu.Unlock()
}

func (o *Orchestrator) currentOptions() *GenerationOptions {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.options == nil {
		return nil
	}
	opts := *o.options
	return &opts
}

// apply dispatches the Applying side effects without blocking the caller.
// Failures are logged and never surface as generation errors.
func (o *Orchestrator) apply(ctx context.Context, req GenerateRequest, result *GenerateResult) {
	o.setPhase(PhaseApplying)
	defer o.setPhase(PhaseIdle)

	id := o.identity()
	title := ExtractTitle(result.Content, req.Prompt)
	ctx = context.WithoutCancel(ctx)

	if id.Anonymous() {
		if o.effects.Notifier != nil {
			o.effects.Notifier.Notify(Notice{Kind: NoticeSignIn, Message: "Sign in to save your mind maps and pick up where you left off."})
		}
		if o.effects.Analytics == nil {
			return
		}
		record := AnonymousRecord{
			Prompt:    req.Prompt,
			Title:     title,
			Content:   result.Content,
			SessionID: id.SessionID,
			UserAgent: id.UserAgent,
			Referrer:  id.Referrer,
		}
		o.dispatch(func() {
			if err := o.effects.Analytics.RecordAnonymous(ctx, record); err != nil {
				o.logWarn("Anonymous analytics failed", map[string]interface{}{"error": err.Error()})
			}
		})
		return
	}

	if o.effects.Threads == nil {
		return
	}
	draft := ThreadDraft{Title: title, Content: result.Content, Options: req.Options}
	if result.Metadata != nil {
		draft.Reasoning = result.Metadata.Reasoning
		draft.ReasoningDuration = result.Metadata.ReasoningDuration
	}
	userID := *id.UserID
	o.dispatch(func() {
		if err := o.effects.Threads.CreateThread(ctx, userID, draft); err != nil {
			o.logError("Failed to persist thread", map[string]interface{}{"user_id": userID.String(), "error": err.Error()})
			return
		}
		if o.effects.Notifier != nil {
			o.effects.Notifier.Notify(Notice{Kind: NoticeThreadSaved, Message: "Mind map saved."})
		}
	})
}

func (o *Orchestrator) dispatch(fn func()) {
	o.effectsWG.Add(1)
	go func() {
		defer o.effectsWG.Done()
		fn()
	}()
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	o.emitStatus()
}

func (o *Orchestrator) emitStatus() {
	if o.onStatus == nil {
		return
	}
	o.onStatus(o.Status())
}

func (o *Orchestrator) logInfo(msg string, details map[string]interface{}) {
	if o.logger != nil {
		o.logger.Info(logModule, msg, details)
	}
}

func (o *Orchestrator) logWarn(msg string, details map[string]interface{}) {
	if o.logger != nil {
		o.logger.Warn(logModule, msg, details)
	}
}

func (o *Orchestrator) logError(msg string, details map[string]interface{}) {
	if o.logger != nil {
		o.logger.Error(logModule, msg, details)
	}
}
