package mindmap

import (
	"sync"
)

// Snapshot is an immutable copy of State.
type Snapshot struct {
	Prompt      string `json:"prompt"`
	IsLoading   bool   `json:"isLoading"`
	MindmapData string `json:"mindmapData"`
	Error       string `json:"error,omitempty"`
}

// State is the single source of truth for the current mind map. It is
// written only from the terminal step of a generation, never optimistically.
type State struct {
	mu        sync.Mutex
	snap      Snapshot
	owner     uint64
	nextSub   int
	listeners map[int]func(Snapshot)
}

func NewState() *State {
	return &State{listeners: make(map[int]func(Snapshot))}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn to be called after every change. Listeners run
// outside the lock and must not block for long.
func (s *State) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *State) SetPrompt(prompt string) {
	s.update(func(snap *Snapshot) { snap.Prompt = prompt })
}

func (s *State) SetMindmapData(content string) {
	s.update(func(snap *Snapshot) { snap.MindmapData = content })
}

func (s *State) SetError(msg string) {
	s.update(func(snap *Snapshot) { snap.Error = msg })
}

// SetLoading is the raw setter; generation flows use Begin/EndGeneration.
func (s *State) SetLoading(loading bool) {
	s.update(func(snap *Snapshot) { snap.IsLoading = loading })
}

// Reset clears everything except subscriptions. An active owner is dropped.
func (s *State) Reset() {
	s.mu.Lock()
	s.owner = 0
	s.mu.Unlock()
	s.update(func(snap *Snapshot) { *snap = Snapshot{} })
}

// BeginGeneration hands the "currently generating" responsibility to owner.
// Owner ids must be non-zero.
func (s *State) BeginGeneration(owner uint64) error {
	s.mu.Lock()
	if s.owner != 0 && s.owner != owner {
		s.mu.Unlock()
		return ErrGenerationInProgress
	}
	s.owner = owner
	s.snap.IsLoading = true
	s.snap.Error = ""
	snap, listeners := s.snap, s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	return nil
}

// TransferGeneration moves responsibility from one owner to another without
// clearing IsLoading. It reports false when from is not the current owner.
func (s *State) TransferGeneration(from, to uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != from {
		return false
	}
	s.owner = to
	return true
}

// EndGeneration applies the terminal outcome for owner and clears IsLoading.
// It is a no-op returning false when owner no longer holds the state.
func (s *State) EndGeneration(owner uint64, apply func(*Snapshot)) bool {
	s.mu.Lock()
	if s.owner != owner {
		s.mu.Unlock()
		return false
	}
	if apply != nil {
		apply(&s.snap)
	}
	s.owner = 0
	s.snap.IsLoading = false
	snap, listeners := s.snap, s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	return true
}

// Owner reports the id currently generating, zero when idle.
func (s *State) Owner() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *State) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	snap, listeners := s.snap, s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, snap)
}

func (s *State) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
