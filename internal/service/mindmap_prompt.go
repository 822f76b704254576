package service

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Kripu77/prompt-map-sub001/internal/constant"
	"github.com/Kripu77/prompt-map-sub001/pkg/llm"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

var (
	systemPromptTemplate   = template.Must(template.New("mindmap_system").Parse(constant.MindmapSystemPromptV1))
	followUpPromptTemplate = template.Must(template.New("mindmap_follow_up").Parse(constant.MindmapFollowUpPromptV1))
)

// DefaultGenerationOptions fill in whatever the client left unset.
var DefaultGenerationOptions = mindmap.GenerationOptions{
	UserExpertise:  mindmap.ExpertiseIntermediate,
	Purpose:        mindmap.PurposeLearning,
	TimeConstraint: mindmap.TimeDetailed,
	Format:         mindmap.FormatPractical,
}

func resolveOptions(opts *mindmap.GenerationOptions) mindmap.GenerationOptions {
	out := DefaultGenerationOptions
	if opts == nil {
		return out
	}
	if opts.UserExpertise != "" {
		out.UserExpertise = opts.UserExpertise
	}
	if opts.Purpose != "" {
		out.Purpose = opts.Purpose
	}
	if opts.TimeConstraint != "" {
		out.TimeConstraint = opts.TimeConstraint
	}
	if opts.Format != "" {
		out.Format = opts.Format
	}
	out.UseChainOfThought = opts.UseChainOfThought
	return out
}

// BuildMessages renders the chat history for a generation request: the
// tailored system prompt, then either the bare topic or the follow-up brief.
func BuildMessages(req mindmap.GenerateRequest) ([]llm.Message, error) {
	opts := resolveOptions(req.Options)

	var system bytes.Buffer
	err := systemPromptTemplate.Execute(&system, struct {
		Expertise, Purpose, Depth, Style string
		ChainOfThought                   bool
	}{
		Expertise:      constant.MindmapExpertiseGuidance[string(opts.UserExpertise)],
		Purpose:        constant.MindmapPurposeGuidance[string(opts.Purpose)],
		Depth:          constant.MindmapDepthGuidance[string(opts.TimeConstraint)],
		Style:          constant.MindmapFormatGuidance[string(opts.Format)],
		ChainOfThought: opts.UseChainOfThought,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	user := req.Prompt
	if fc := req.Context; fc != nil && fc.ExistingMindmap != "" {
		var b bytes.Buffer
		err := followUpPromptTemplate.Execute(&b, struct {
			OriginalPrompt  string
			PreviousPrompts []string
			ExistingMindmap string
			Prompt          string
		}{
			OriginalPrompt:  fc.OriginalPrompt,
			PreviousPrompts: fc.PreviousPrompts,
			ExistingMindmap: fc.ExistingMindmap,
			Prompt:          req.Prompt,
		})
		if err != nil {
			return nil, fmt.Errorf("render follow-up prompt: %w", err)
		}
		user = b.String()
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system.String()},
		{Role: llm.RoleUser, Content: user},
	}, nil
}
