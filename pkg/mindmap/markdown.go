package mindmap

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultTitle is used when neither the content nor the prompt yield a title.
const DefaultTitle = "Untitled"

var (
	ErrEmptyContent   = errors.New("mind map content is empty")
	ErrNoTitle        = errors.New("mind map has no H1 title")
	ErrMultipleTitles = errors.New("mind map has more than one H1 title")
)

var (
	titlePattern  = regexp.MustCompile(`(?m)^# (.+)$`)
	headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	thinkPattern  = regexp.MustCompile(`(?s)^\s*<think>(.*?)</think>\s*`)
)

// FindTitle returns the text of the first H1 line.
func FindTitle(content string) (string, bool) {
	m := titlePattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return "", false
	}
	return title, true
}

// ExtractTitle resolves a display title: H1 text, then the prompt, then DefaultTitle.
func ExtractTitle(content, prompt string) string {
	if title, ok := FindTitle(content); ok {
		return title
	}
	if p := strings.TrimSpace(prompt); p != "" {
		return p
	}
	return DefaultTitle
}

// Node is one header in the mind map tree. Level 0 is a synthetic root.
type Node struct {
	Level    int     `json:"level"`
	Text     string  `json:"text"`
	Children []*Node `json:"children,omitempty"`
}

// ParseOutline builds the H1/H2/H3 tree encoded by the markdown headers.
// Deeper headers are folded into level 3; non-header lines are skipped.
// A document with a single H1 returns that H1 as the root.
func ParseOutline(content string) *Node {
	root := &Node{Level: 0}
	var h1, h2 *Node

	for _, line := range strings.Split(content, "\n") {
		m := headerPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		level := len(m[1])
		if level > 3 {
			level = 3
		}
		node := &Node{Level: level, Text: strings.TrimSpace(m[2])}

		switch level {
		case 1:
			root.Children = append(root.Children, node)
			h1, h2 = node, nil
		case 2:
			parent := root
			if h1 != nil {
				parent = h1
			}
			parent.Children = append(parent.Children, node)
			h2 = node
		default:
			parent := root
			if h2 != nil {
				parent = h2
			} else if h1 != nil {
				parent = h1
			}
			parent.Children = append(parent.Children, node)
		}
	}

	if len(root.Children) == 1 && root.Children[0].Level == 1 {
		return root.Children[0]
	}
	return root
}

// CountNodes counts every non-synthetic node in the tree.
func CountNodes(n *Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Level > 0 {
		count = 1
	}
	for _, c := range n.Children {
		count += CountNodes(c)
	}
	return count
}

// Validate checks that content is a well-formed mind map with exactly one H1.
func Validate(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	matches := titlePattern.FindAllStringSubmatch(content, -1)
	titles := 0
	for _, m := range matches {
		if strings.TrimSpace(m[1]) != "" {
			titles++
		}
	}
	switch {
	case titles == 0:
		return ErrNoTitle
	case titles > 1:
		return ErrMultipleTitles
	}
	return nil
}

// WordCount counts whitespace-delimited non-empty tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// StripReasoning separates a leading <think>...</think> block from the content.
func StripReasoning(text string) (content, reasoning string) {
	m := thinkPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return text, ""
	}
	reasoning = strings.TrimSpace(text[m[2]:m[3]])
	content = text[m[1]:]
	return content, reasoning
}
