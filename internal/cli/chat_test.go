package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, req mindmap.GenerateRequest) (*mindmap.GenerateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	if strings.Contains(req.Prompt, "pizza") {
		return &mindmap.GenerateResult{Content: "# Pizza\n## Dough"}, nil
	}
	return &mindmap.GenerateResult{Content: "# Volcanoes\n## Types\n### Shield"}, nil
}

// shiftOnPizza flags any follow-up mentioning pizza.
type shiftOnPizza struct{}

func (shiftOnPizza) CheckShift(_ context.Context, p mindmap.PromptPayload) (mindmap.TopicShiftResult, error) {
	if strings.Contains(p.Prompt, "pizza") {
		return mindmap.TopicShiftResult{IsTopicShift: true, Reason: "Pizza is not geology"}, nil
	}
	return mindmap.TopicShiftResult{}, nil
}

func newTestChat(gen *scriptedGenerator) (*chatSession, *bytes.Buffer) {
	color.NoColor = true
	var out bytes.Buffer
	orch := mindmap.NewOrchestrator(mindmap.Config{Generator: gen, Shift: shiftOnPizza{}})
	return &chatSession{
		orch: orch,
		out:  &out,
		ctx: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), time.Second)
		},
	}, &out
}

func TestChat_TopicShiftThenNewTopic(t *testing.T) {
	gen := &scriptedGenerator{}
	s, out := newTestChat(gen)

	s.loop(strings.NewReader("volcanoes\npizza\n/new\n/map\n/quit\nnever read\n"))

	text := out.String()
	assert.Contains(t, text, "Volcanoes\n  ├─ Types\n    └─ Shield")
	assert.Contains(t, text, "That looks like a new topic: Pizza is not geology")
	assert.Contains(t, text, "[new/continue/dismiss] > ")
	assert.Contains(t, text, "# Pizza\n## Dough")
	assert.Equal(t, []string{"volcanoes", "pizza"}, gen.prompts)
	assert.Equal(t, mindmap.PhaseIdle, s.orch.Status().Phase)
}

func TestChat_DismissAndUnknownCommand(t *testing.T) {
	gen := &scriptedGenerator{}
	s, out := newTestChat(gen)

	s.loop(strings.NewReader("/dismiss\nvolcanoes\npizza\n/dismiss\n/bogus\n"))

	text := out.String()
	assert.Contains(t, text, mindmap.ErrNoPendingPrompt.Error())
	assert.Contains(t, text, "dismissed")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Equal(t, []string{"volcanoes"}, gen.prompts)
	require.Equal(t, "# Volcanoes\n## Types\n### Shield", s.orch.State().Snapshot().MindmapData)
}

func TestChat_Reset(t *testing.T) {
	gen := &scriptedGenerator{}
	s, out := newTestChat(gen)

	s.loop(strings.NewReader("volcanoes\n/reset\npizza\n"))

	assert.Contains(t, out.String(), "cleared")
	// after a reset pizza is a fresh map, not a shift
	assert.Equal(t, []string{"volcanoes", "pizza"}, gen.prompts)
	assert.Equal(t, "# Pizza\n## Dough", s.orch.State().Snapshot().MindmapData)
}
