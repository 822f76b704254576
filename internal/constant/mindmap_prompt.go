package constant

const (
	MindmapSystemPromptV1 = `You are an expert at turning a topic into a hierarchical mind map written in Markdown.

FORMAT RULES (always follow):
- Exactly one H1 line ("# Title") naming the central topic. It is the first line of the document.
- Main branches are H2 headers ("## Branch").
- Sub-branches are H3 headers ("### Sub-branch").
- Under any header you may add short bullet points ("- fact") with key details.
- Output only the Markdown document. No preamble, no closing remarks, no code fences.

AUDIENCE: {{.Expertise}}
PURPOSE: {{.Purpose}}
DEPTH: {{.Depth}}
STYLE: {{.Style}}
{{- if .ChainOfThought}}

Before writing the document, reason step by step about the structure inside <think></think> tags.
The Markdown document starts immediately after the closing </think> tag.
{{- end}}`

	MindmapFollowUpPromptV1 = `The user is refining an existing mind map.

Original request: "{{.OriginalPrompt}}"
{{- if .PreviousPrompts}}
Earlier requests in this session:
{{- range .PreviousPrompts}}
- {{.}}
{{- end}}
{{- end}}

Current mind map:
{{.ExistingMindmap}}

New request: "{{.Prompt}}"

Return the COMPLETE updated mind map, not a diff. Keep the single H1 and reuse the existing branches where they still apply.`
)

// Guidance lines keyed by generation option value.
var (
	MindmapExpertiseGuidance = map[string]string{
		"beginner":     "A beginner. Use plain language, avoid jargon and define any term you must use.",
		"intermediate": "Someone with basic familiarity. Use standard terminology without over-explaining.",
		"advanced":     "An expert. Include nuanced and technical detail, skip the basics.",
	}

	MindmapPurposeGuidance = map[string]string{
		"learning":  "Learning. Order branches so understanding builds step by step.",
		"reference": "Quick reference. Be concise, factual and easy to scan.",
		"teaching":  "Teaching others. Include examples and common misconceptions.",
		"planning":  "Planning. Emphasise actionable steps, dependencies and milestones.",
	}

	MindmapDepthGuidance = map[string]string{
		"quick":         "Quick overview: 3-4 main branches with 2-3 bullets each.",
		"detailed":      "Detailed: 5-7 main branches, each with H3 sub-branches.",
		"comprehensive": "Comprehensive: 7-10 main branches with deep H3 sub-branches and supporting bullets.",
	}

	MindmapFormatGuidance = map[string]string{
		"academic":  "Academic. Formal tone with precise definitions.",
		"practical": "Practical. Focus on real-world applications and how-tos.",
		"creative":  "Creative. Use analogies and memorable phrasing.",
	}
)
