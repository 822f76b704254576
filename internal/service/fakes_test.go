package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/internal/entity"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/contract"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/specification"
	"github.com/Kripu77/prompt-map-sub001/internal/repository/unitofwork"
	"github.com/Kripu77/prompt-map-sub001/pkg/events"
	"github.com/Kripu77/prompt-map-sub001/pkg/llm"
)

// fakeProvider replays a scripted response.
type fakeProvider struct {
	response string
	chunks   []llm.Chunk
	err      error

	mu       sync.Mutex
	history  []llm.Message
	options  llm.Options
	calls    int
	streamed bool
}

var _ llm.LLMProvider = (*fakeProvider)(nil)

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }

func (p *fakeProvider) Chat(_ context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.history = history
	p.options = llm.Apply(llm.Options{}, options...)
	return p.response, p.err
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (p *fakeProvider) Stream(ctx context.Context, history []llm.Message, handler llm.ChunkHandler, options ...llm.Option) error {
	p.mu.Lock()
	p.calls++
	p.streamed = true
	p.history = history
	p.options = llm.Apply(llm.Options{}, options...)
	p.mu.Unlock()

	for _, c := range p.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(c); err != nil {
			return err
		}
	}
	return p.err
}

type fakeClassifier struct {
	response string
	err      error
	prompts  []string
}

func (c *fakeClassifier) Classify(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.response, c.err
}

// memThreads is an in-memory ThreadRepository that understands the
// specifications the thread service uses.
type memThreads struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*entity.Thread
	failing error
}

func newMemThreads() *memThreads {
	return &memThreads{rows: make(map[uuid.UUID]*entity.Thread)}
}

var _ contract.ThreadRepository = (*memThreads)(nil)

func (r *memThreads) Create(_ context.Context, t *entity.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return r.failing
	}
	if t.Id == uuid.Nil {
		t.Id = uuid.New()
	}
	cp := *t
	r.rows[t.Id] = &cp
	return nil
}

func (r *memThreads) Update(_ context.Context, t *entity.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[t.Id]; !ok {
		return errors.New("no such row")
	}
	cp := *t
	r.rows[t.Id] = &cp
	return nil
}

func (r *memThreads) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memThreads) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Thread, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *memThreads) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return nil, r.failing
	}

	var out []*entity.Thread
	page := specification.Pagination{Limit: -1}
	for _, t := range r.rows {
		if matches(t, specs, &page) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if page.Offset >= len(out) {
		return []*entity.Thread{}, nil
	}
	out = out[page.Offset:]
	if page.Limit >= 0 && page.Limit < len(out) {
		out = out[:page.Limit]
	}
	return out, nil
}

func (r *memThreads) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func matches(t *entity.Thread, specs []specification.Specification, page *specification.Pagination) bool {
	for _, s := range specs {
		switch spec := s.(type) {
		case specification.ByID:
			if t.Id != spec.ID {
				return false
			}
		case specification.OwnedBy:
			if t.UserId != spec.UserID {
				return false
			}
		case specification.Pagination:
			*page = spec
		}
	}
	return true
}

type memAnonymous struct {
	mu         sync.Mutex
	rows       []*entity.AnonymousMindmap
	failPrompt string
	stored     chan struct{}
}

func (r *memAnonymous) Create(_ context.Context, a *entity.AnonymousMindmap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPrompt != "" && a.Prompt == r.failPrompt {
		return errors.New("db down")
	}
	cp := *a
	r.rows = append(r.rows, &cp)
	if r.stored != nil {
		r.stored <- struct{}{}
	}
	return nil
}

func (r *memAnonymous) FindAll(context.Context, ...specification.Specification) ([]*entity.AnonymousMindmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.AnonymousMindmap(nil), r.rows...), nil
}

func (r *memAnonymous) Count(context.Context, ...specification.Specification) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

type fakeUnitOfWork struct {
	threads   *memThreads
	anonymous *memAnonymous
}

func (u *fakeUnitOfWork) Begin(context.Context) error { return nil }
func (u *fakeUnitOfWork) Commit() error               { return nil }
func (u *fakeUnitOfWork) Rollback() error             { return nil }

func (u *fakeUnitOfWork) ThreadRepository() contract.ThreadRepository { return u.threads }

func (u *fakeUnitOfWork) AnonymousMindmapRepository() contract.AnonymousMindmapRepository {
	return u.anonymous
}

type fakeFactory struct {
	uow *fakeUnitOfWork
}

var _ unitofwork.RepositoryFactory = (*fakeFactory)(nil)

func newFakeFactory() *fakeFactory {
	return &fakeFactory{uow: &fakeUnitOfWork{threads: newMemThreads(), anonymous: &memAnonymous{}}}
}

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}
