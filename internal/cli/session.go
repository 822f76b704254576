package cli

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
	"github.com/Kripu77/prompt-map-sub001/pkg/promptmap/client"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newSessionID returns a sortable id for anonymous analytics.
func newSessionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// printNotifier writes notices to the terminal.
type printNotifier struct {
	w io.Writer
}

func (n printNotifier) Notify(notice mindmap.Notice) {
	switch notice.Kind {
	case mindmap.NoticeGenerationErr:
		errorColor.Fprintf(n.w, "! %s\n", notice.Message)
	case mindmap.NoticeSignIn:
		dimColor.Fprintf(n.w, "i %s\n", notice.Message)
	default:
		noticeColor.Fprintf(n.w, "* %s\n", notice.Message)
	}
}

type sessionConfig struct {
	client   *client.Client
	notices  io.Writer
	onStream func(mindmap.StreamingState)
}

// newOrchestrator wires a remote session: generation and shift checks go to
// the server, threads are saved when a token is present, anonymous usage is
// recorded otherwise.
func newOrchestrator(cfg sessionConfig) (*mindmap.Orchestrator, error) {
	identity := mindmap.Identity{SessionID: newSessionID(), UserAgent: "promptmap-cli"}
	if t := getToken(); t != "" {
		userID, err := client.UserIDFromToken(t)
		if err != nil {
			return nil, err
		}
		identity.UserID = &userID
	}

	return mindmap.NewOrchestrator(mindmap.Config{
		Generator: cfg.client,
		Streams:   cfg.client,
		Shift:     cfg.client,
		Effects: mindmap.SideEffects{
			Threads:   cfg.client,
			Analytics: cfg.client,
			Notifier:  printNotifier{w: cfg.notices},
		},
		Identity:       func() mindmap.Identity { return identity },
		OnStreamUpdate: cfg.onStream,
	}), nil
}

// streamPrinter echoes only the new part of the accumulated text.
type streamPrinter struct {
	w       io.Writer
	mu      sync.Mutex
	printed int
}

func (p *streamPrinter) update(st mindmap.StreamingState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(st.AccumulatedText) < p.printed {
		p.printed = 0
	}
	if delta := st.AccumulatedText[p.printed:]; delta != "" {
		fmt.Fprint(p.w, delta)
		p.printed = len(st.AccumulatedText)
	}
	if st.IsComplete || st.Error != "" {
		fmt.Fprintln(p.w)
		p.printed = 0
	}
}

var validate = validator.New()

func addOptionFlags(cmd *cobra.Command) {
	cmd.Flags().String("expertise", "", "beginner, intermediate or advanced")
	cmd.Flags().String("purpose", "", "learning, reference, teaching or planning")
	cmd.Flags().String("depth", "", "quick, detailed or comprehensive")
	cmd.Flags().String("style", "", "academic, practical or creative")
	cmd.Flags().Bool("think", false, "Ask the model to reason before answering")
}

// readOptions returns nil when no option flag was set.
func readOptions(cmd *cobra.Command) (*mindmap.GenerationOptions, error) {
	expertise, _ := cmd.Flags().GetString("expertise")
	purpose, _ := cmd.Flags().GetString("purpose")
	depth, _ := cmd.Flags().GetString("depth")
	style, _ := cmd.Flags().GetString("style")
	think, _ := cmd.Flags().GetBool("think")

	opts := &mindmap.GenerationOptions{
		UserExpertise:     mindmap.Expertise(expertise),
		Purpose:           mindmap.Purpose(purpose),
		TimeConstraint:    mindmap.TimeConstraint(depth),
		Format:            mindmap.Format(style),
		UseChainOfThought: think,
	}
	if *opts == (mindmap.GenerationOptions{}) {
		return nil, nil
	}
	if err := validate.Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("invalid %s %q", fe.Field(), fe.Value())
		}
		return nil, err
	}
	return opts, nil
}
