package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

const chatHelp = `Type a prompt to generate or refine the map. Commands:
  /new       start a new map with the prompt held by a topic shift
  /continue  add the held prompt to the current map anyway
  /dismiss   drop the held prompt
  /map       print the current map as markdown
  /reset     clear the map and history
  /help      show this help
  /quit      leave`

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Build a mind map interactively with follow-up prompts",
		Run:   runChat,
	}

	cmd.Flags().Bool("stream", false, "Stream each generation")
	addOptionFlags(cmd)

	RootCmd.AddCommand(cmd)
}

// chatSession drives one Orchestrator from line input.
type chatSession struct {
	orch   *mindmap.Orchestrator
	stream bool
	out    io.Writer
	ctx    func() (context.Context, context.CancelFunc)
}

func runChat(cmd *cobra.Command, args []string) {
	stream, _ := cmd.Flags().GetBool("stream")
	opts, err := readOptions(cmd)
	if err != nil {
		exitErr("options", err)
	}

	printer := &streamPrinter{w: os.Stdout}
	orch, err := newOrchestrator(sessionConfig{
		client:   newClient(),
		notices:  os.Stderr,
		onStream: printer.update,
	})
	if err != nil {
		exitErr("token", err)
	}
	orch.SetOptions(opts)

	s := &chatSession{
		orch:   orch,
		stream: stream,
		out:    os.Stdout,
		ctx: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(cmd.Context(), timeout)
		},
	}
	dimColor.Fprintln(os.Stderr, chatHelp)
	s.loop(os.Stdin)
	orch.WaitSideEffects()
}

func (s *chatSession) loop(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, s.prompt())
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return
		}
		if !s.handle(strings.TrimSpace(scanner.Text())) {
			return
		}
	}
}

func (s *chatSession) prompt() string {
	if s.orch.Status().Phase == mindmap.PhaseAwaitingShiftDecision {
		return noticeColor.Sprint("[new/continue/dismiss] > ")
	}
	return "> "
}

// handle runs one line and reports whether the loop should continue.
func (s *chatSession) handle(line string) bool {
	switch line {
	case "":
		return true
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
		return true
	case "/map":
		fmt.Fprintln(s.out, s.orch.State().Snapshot().MindmapData)
		return true
	case "/reset":
		s.orch.Reset()
		dimColor.Fprintln(s.out, "cleared")
		return true
	case "/dismiss":
		if err := s.orch.DismissShift(); err != nil {
			errorColor.Fprintf(s.out, "%v\n", err)
		} else {
			dimColor.Fprintln(s.out, "dismissed")
		}
		return true
	case "/new":
		s.run(s.orch.StartNewTopic, s.orch.StartNewTopicStreaming)
		return true
	case "/continue":
		s.run(s.orch.ContinueAnyway, s.orch.ContinueAnywayStreaming)
		return true
	}
	if strings.HasPrefix(line, "/") {
		errorColor.Fprintf(s.out, "unknown command %s\n", line)
		return true
	}

	s.run(
		func(ctx context.Context) (mindmap.Outcome, error) { return s.orch.Submit(ctx, line) },
		func(ctx context.Context) (*mindmap.StreamHandle, mindmap.Outcome, error) {
			return s.orch.SubmitStreaming(ctx, line)
		},
	)
	return true
}

func (s *chatSession) run(
	buffered func(context.Context) (mindmap.Outcome, error),
	streaming func(context.Context) (*mindmap.StreamHandle, mindmap.Outcome, error),
) {
	ctx, cancel := s.ctx()
	defer cancel()

	if !s.stream {
		out, err := buffered(ctx)
		s.report(out, err)
		return
	}

	h, out, err := streaming(ctx)
	if h != nil {
		if werr := h.Wait(ctx); werr != nil {
			s.orch.StopStream()
			<-h.Done()
		}
	}
	s.report(out, err)
}

func (s *chatSession) report(out mindmap.Outcome, err error) {
	switch {
	case err != nil:
		errorColor.Fprintf(s.out, "%v\n", err)
		return
	case out.TopicShiftDetected:
		noticeColor.Fprintf(s.out, "That looks like a new topic: %s\n", out.ShiftReason)
		return
	}

	snap := s.orch.State().Snapshot()
	if snap.Error != "" {
		errorColor.Fprintf(s.out, "%s\n", snap.Error)
		return
	}
	if snap.MindmapData != "" && (out.Generated || s.stream) {
		renderOutline(s.out, snap.MindmapData)
		if out.Result != nil {
			renderMetadata(s.out, out.Result.Metadata)
		}
	}
}
