package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

// renderOutline prints the header tree of a mind map.
func renderOutline(w io.Writer, content string) {
	root := mindmap.ParseOutline(content)
	if root == nil {
		return
	}
	if root.Level == 0 {
		for _, child := range root.Children {
			renderNode(w, child, 0)
		}
		return
	}
	renderNode(w, root, 0)
}

func renderNode(w io.Writer, n *mindmap.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Level {
	case 1:
		titleColor.Fprintln(w, n.Text)
	case 2:
		branchColor.Fprintf(w, "%s├─ %s\n", indent, n.Text)
	default:
		leafColor.Fprintf(w, "%s└─ %s\n", indent, n.Text)
	}
	for _, child := range n.Children {
		renderNode(w, child, depth+1)
	}
}

func renderMetadata(w io.Writer, meta *mindmap.Metadata) {
	if meta == nil {
		return
	}
	parts := []string{fmt.Sprintf("%d nodes", meta.NodeCount), fmt.Sprintf("%d words", meta.WordCount)}
	if meta.Model != "" {
		parts = append(parts, meta.Model)
	}
	if meta.ReasoningDuration > 0 {
		parts = append(parts, fmt.Sprintf("thought for %ds", meta.ReasoningDuration))
	}
	dimColor.Fprintf(w, "(%s)\n", strings.Join(parts, ", "))
}
