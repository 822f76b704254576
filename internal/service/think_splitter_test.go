package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func splitAll(chunks ...string) (text, reasoning string) {
	var s thinkSplitter
	var t, r strings.Builder
	for _, c := range chunks {
		a, b := s.Feed(c)
		t.WriteString(a)
		r.WriteString(b)
	}
	a, b := s.Flush()
	t.WriteString(a)
	r.WriteString(b)
	return t.String(), r.String()
}

func TestThinkSplitter(t *testing.T) {
	tests := []struct {
		name          string
		chunks        []string
		wantText      string
		wantReasoning string
	}{
		{
			name:     "no reasoning",
			chunks:   []string{"# Title\n", "## Branch"},
			wantText: "# Title\n## Branch",
		},
		{
			name:          "whole block in one chunk",
			chunks:        []string{"<think>plan it</think>\n# Title"},
			wantText:      "# Title",
			wantReasoning: "plan it",
		},
		{
			name:          "tags split across chunks",
			chunks:        []string{"  <thi", "nk>step one ", "step two</th", "ink>", "# Ti", "tle"},
			wantText:      "# Title",
			wantReasoning: "step one step two",
		},
		{
			name:          "unterminated block stays reasoning",
			chunks:        []string{"<think>never ends"},
			wantReasoning: "never ends",
		},
		{
			name:     "think tag later in text is content",
			chunks:   []string{"# Title\n", "<think>not reasoning</think>"},
			wantText: "# Title\n<think>not reasoning</think>",
		},
		{
			name:     "partial open tag that diverges",
			chunks:   []string{"<th", "ree>"},
			wantText: "<three>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, reasoning := splitAll(tt.chunks...)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantReasoning, reasoning)
		})
	}
}

func TestPartialSuffix(t *testing.T) {
	assert.Equal(t, 3, partialSuffix("abc</t", thinkClose))
	assert.Equal(t, 0, partialSuffix("abc", thinkClose))
	assert.Equal(t, 1, partialSuffix("x<", thinkClose))
}
