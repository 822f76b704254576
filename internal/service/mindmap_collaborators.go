package service

import (
	"context"
	"io"

	"github.com/Kripu77/prompt-map-sub001/internal/dto"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

// MindmapCollaborators exposes IMindmapService through the Orchestrator's
// Generator, StreamOpener and ShiftChecker interfaces, so server-side
// workspaces skip the HTTP round trip.
type MindmapCollaborators struct {
	svc IMindmapService
}

var (
	_ mindmap.Generator    = (*MindmapCollaborators)(nil)
	_ mindmap.StreamOpener = (*MindmapCollaborators)(nil)
	_ mindmap.ShiftChecker = (*MindmapCollaborators)(nil)
)

func NewMindmapCollaborators(svc IMindmapService) *MindmapCollaborators {
	return &MindmapCollaborators{svc: svc}
}

func (c *MindmapCollaborators) Generate(ctx context.Context, req mindmap.GenerateRequest) (*mindmap.GenerateResult, error) {
	return c.svc.Generate(ctx, req)
}

// OpenStream runs Stream in the background and returns the read side of a
// pipe carrying its wire records. Closing the body aborts the writer.
func (c *MindmapCollaborators) OpenStream(ctx context.Context, req mindmap.GenerateRequest) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	go func() {
		defer cancel()
		err := c.svc.Stream(ctx, req, pw)
		pw.CloseWithError(err)
	}()
	return &pipeBody{PipeReader: pr, cancel: cancel}, nil
}

func (c *MindmapCollaborators) CheckShift(ctx context.Context, payload mindmap.PromptPayload) (mindmap.TopicShiftResult, error) {
	return c.svc.CheckTopicShift(ctx, dto.TopicShiftRequest{Prompt: payload.Prompt, Context: payload.Context})
}

type pipeBody struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (b *pipeBody) Close() error {
	b.cancel()
	return b.PipeReader.Close()
}
