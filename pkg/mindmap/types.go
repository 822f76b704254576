package mindmap

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

var (
	ErrEmptyPrompt          = errors.New("prompt is empty")
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	ErrNoPendingPrompt      = errors.New("no topic shift decision is pending")
	ErrStreamingUnavailable = errors.New("streaming is not configured")
)

type Expertise string

const (
	ExpertiseBeginner     Expertise = "beginner"
	ExpertiseIntermediate Expertise = "intermediate"
	ExpertiseAdvanced     Expertise = "advanced"
)

type Purpose string

const (
	PurposeLearning  Purpose = "learning"
	PurposeReference Purpose = "reference"
	PurposeTeaching  Purpose = "teaching"
	PurposePlanning  Purpose = "planning"
)

type TimeConstraint string

const (
	TimeQuick         TimeConstraint = "quick"
	TimeDetailed      TimeConstraint = "detailed"
	TimeComprehensive TimeConstraint = "comprehensive"
)

type Format string

const (
	FormatAcademic  Format = "academic"
	FormatPractical Format = "practical"
	FormatCreative  Format = "creative"
)

// GenerationOptions tailor the generated map. Zero values mean "server default".
type GenerationOptions struct {
	UserExpertise     Expertise      `json:"userExpertise,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Purpose           Purpose        `json:"purpose,omitempty" validate:"omitempty,oneof=learning reference teaching planning"`
	TimeConstraint    TimeConstraint `json:"timeConstraint,omitempty" validate:"omitempty,oneof=quick detailed comprehensive"`
	Format            Format         `json:"format,omitempty" validate:"omitempty,oneof=academic practical creative"`
	UseChainOfThought bool           `json:"useChainOfThought,omitempty"`
}

// GenerateRequest is the body of the buffered and streaming generation endpoints.
type GenerateRequest struct {
	Prompt  string             `json:"prompt" validate:"required,max=2000"`
	Context *FollowUpContext   `json:"context,omitempty" validate:"omitempty"`
	Options *GenerationOptions `json:"options,omitempty" validate:"omitempty"`
}

type Metadata struct {
	Title             string `json:"title"`
	Provider          string `json:"provider,omitempty"`
	Model             string `json:"model,omitempty"`
	Reasoning         string `json:"reasoning,omitempty"`
	ReasoningDuration int    `json:"reasoningDuration,omitempty"` // seconds
	WordCount         int    `json:"wordCount"`
	NodeCount         int    `json:"nodeCount"`
	IsFollowUp        bool   `json:"isFollowUp"`
}

type GenerateResult struct {
	Content  string    `json:"content"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Generator performs a buffered generation call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// StreamOpener starts a streaming generation call. The returned body carries
// wire records and is closed by the caller.
type StreamOpener interface {
	OpenStream(ctx context.Context, req GenerateRequest) (io.ReadCloser, error)
}

// ShiftChecker decides whether a follow-up drifts away from the current map.
type ShiftChecker interface {
	CheckShift(ctx context.Context, payload PromptPayload) (TopicShiftResult, error)
}

// ThreadDraft is what gets persisted for a signed-in user after a generation.
type ThreadDraft struct {
	Title             string
	Content           string
	Reasoning         string
	ReasoningDuration int
	Options           *GenerationOptions
}

type ThreadPersister interface {
	CreateThread(ctx context.Context, userID uuid.UUID, draft ThreadDraft) error
}

// AnonymousRecord is the usage analytics entry for sessions without a user.
type AnonymousRecord struct {
	Prompt    string `json:"prompt"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	SessionID string `json:"sessionId"`
	UserAgent string `json:"userAgent"`
	Referrer  string `json:"referrer"`
}

type AnonymousRecorder interface {
	RecordAnonymous(ctx context.Context, record AnonymousRecord) error
}

type NoticeKind string

const (
	NoticeSignIn        NoticeKind = "sign_in"
	NoticeStopped       NoticeKind = "stopped"
	NoticeThreadSaved   NoticeKind = "thread_saved"
	NoticeGenerationErr NoticeKind = "generation_error"
)

// Notice is a non-blocking user-facing message (toast/banner).
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

type Notifier interface {
	Notify(notice Notice)
}

// Identity describes who the session belongs to. A nil UserID is anonymous.
type Identity struct {
	UserID    *uuid.UUID
	SessionID string
	UserAgent string
	Referrer  string
}

func (i Identity) Anonymous() bool {
	return i.UserID == nil || *i.UserID == uuid.Nil
}
