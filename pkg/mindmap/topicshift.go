package mindmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// TopicShiftResult is the Gate's verdict. It is never persisted.
type TopicShiftResult struct {
	IsTopicShift bool     `json:"isTopicShift"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// Classifier runs a single text classification prompt against an LLM.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, prompt string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

const topicShiftPrompt = `You are judging whether a follow-up question belongs to an existing mind map.

Current mind map topic: "{{.Title}}"
Original request: "{{.OriginalPrompt}}"
New follow-up: "{{.Prompt}}"

Answer "isTopicShift": true only when the follow-up is about a clearly different subject
that cannot reasonably extend the current mind map. Questions that deepen, narrow, widen
or relate to the current topic are NOT a topic shift.

Respond with a single JSON object and nothing else:
{"isTopicShift": <true|false>, "explanation": "<one short sentence>"}`

var topicShiftTemplate = template.Must(
	template.New("topic_shift").Option("missingkey=error").Parse(topicShiftPrompt),
)

// Gate decides topic drift for follow-up prompts. Any failure yields
// IsTopicShift=false so the user's flow is never blocked.
type Gate struct {
	classifier Classifier
}

var _ ShiftChecker = (*Gate)(nil)

func NewGate(classifier Classifier) *Gate {
	return &Gate{classifier: classifier}
}

// CheckShift implements ShiftChecker; the error is always nil.
func (g *Gate) CheckShift(ctx context.Context, payload PromptPayload) (TopicShiftResult, error) {
	return g.Check(ctx, payload), nil
}

// Check classifies payload.Prompt against payload.Context.
func (g *Gate) Check(ctx context.Context, payload PromptPayload) TopicShiftResult {
	result, _ := g.Evaluate(ctx, payload)
	return result
}

// Evaluate is Check that also returns why the analysis failed. The result is
// usable either way; on failure it is the fail-open continue verdict.
func (g *Gate) Evaluate(ctx context.Context, payload PromptPayload) (TopicShiftResult, error) {
	if payload.Context == nil {
		return continueResult("No existing mind map to compare against"), nil
	}
	title, ok := FindTitle(payload.Context.ExistingMindmap)
	if !ok {
		return continueResult("Could not determine the current mind map topic"), nil
	}

	var prompt bytes.Buffer
	err := topicShiftTemplate.Execute(&prompt, struct {
		Title          string
		OriginalPrompt string
		Prompt         string
	}{
		Title:          title,
		OriginalPrompt: payload.Context.OriginalPrompt,
		Prompt:         payload.Prompt,
	})
	if err != nil {
		return failedResult(err)
	}

	if g.classifier == nil {
		return failedResult(errNoClassifier)
	}
	raw, err := g.classifier.Classify(ctx, prompt.String())
	if err != nil {
		return failedResult(err)
	}

	verdict, err := ParseVerdict(raw)
	if err != nil {
		return failedResult(err)
	}
	return verdict, nil
}

func failedResult(err error) (TopicShiftResult, error) {
	return continueResult(fmt.Sprintf("Topic shift analysis failed: %v", err)), err
}

var errNoClassifier = errors.New("no classifier configured")

var errMissingVerdict = errors.New("classifier response has no isTopicShift field")

type classifierVerdict struct {
	IsTopicShift *bool    `json:"isTopicShift"`
	Explanation  string   `json:"explanation"`
	Confidence   *float64 `json:"confidence"`
}

// ParseVerdict decodes an untrusted classifier response. Code fences around
// the JSON are tolerated; anything else that is not the expected object fails.
func ParseVerdict(raw string) (TopicShiftResult, error) {
	body := unfence(raw)

	var v classifierVerdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return TopicShiftResult{}, fmt.Errorf("invalid classifier JSON: %w", err)
	}
	if v.IsTopicShift == nil {
		return TopicShiftResult{}, errMissingVerdict
	}

	res := TopicShiftResult{
		IsTopicShift: *v.IsTopicShift,
		Reason:       strings.TrimSpace(v.Explanation),
	}
	if v.Confidence != nil && *v.Confidence >= 0 && *v.Confidence <= 1 {
		c := *v.Confidence
		res.Confidence = &c
	}
	return res, nil
}

func unfence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func continueResult(reason string) TopicShiftResult {
	return TopicShiftResult{IsTopicShift: false, Reason: reason}
}
