package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	ws "github.com/Kripu77/prompt-map-sub001/internal/websocket"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

const workspacePath = "/api/workspace/v1/ws"

func init() {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Open a live workspace session over a websocket",
		Long: "Drives a server-side session. The map, stream progress and topic-shift prompts arrive as\n" +
			"frames; pass --session to resume a session after a disconnect.",
		Run: runWorkspace,
	}

	cmd.Flags().String("session", "", "Resume this session id")
	cmd.Flags().Bool("stream", true, "Stream each generation")

	RootCmd.AddCommand(cmd)
}

func runWorkspace(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	stream, _ := cmd.Flags().GetBool("stream")

	target, err := workspaceURL(getServer(), getToken(), session)
	if err != nil {
		exitErr("server url", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), target, nil)
	if err != nil {
		exitErr("connect", err)
	}
	defer conn.Close()

	r := newFrameRenderer(os.Stdout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := r.render(data); err != nil {
				errorColor.Fprintf(os.Stderr, "bad frame: %v\n", err)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-done:
			dimColor.Fprintln(os.Stderr, "connection closed")
			return
		case line, ok := <-lines:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			c, quit, err := parseWorkspaceLine(strings.TrimSpace(line), stream)
			if quit {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err != nil {
				errorColor.Fprintln(os.Stderr, err)
				continue
			}
			if c == nil {
				continue
			}
			if err := conn.WriteJSON(c); err != nil {
				exitErr("send", err)
			}
		}
	}
}

// workspaceURL maps the REST server URL onto the websocket endpoint. The
// token rides in the query because browsers cannot set headers on upgrades.
func workspaceURL(server, token, session string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += workspacePath

	q := u.Query()
	if token != "" {
		q.Set("token", token)
	}
	if session != "" {
		q.Set("session", session)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseWorkspaceLine turns a line into a command. A nil command with no
// error means there is nothing to send.
func parseWorkspaceLine(line string, stream bool) (*ws.Command, bool, error) {
	switch line {
	case "":
		return nil, false, nil
	case "/quit", "/exit":
		return nil, true, nil
	case "/new":
		return &ws.Command{Type: ws.CommandDecision, Choice: ws.ChoiceNew}, false, nil
	case "/continue":
		return &ws.Command{Type: ws.CommandDecision, Choice: ws.ChoiceContinue}, false, nil
	case "/dismiss":
		return &ws.Command{Type: ws.CommandDecision, Choice: ws.ChoiceDismiss}, false, nil
	case "/stop":
		return &ws.Command{Type: ws.CommandStop}, false, nil
	case "/reset":
		return &ws.Command{Type: ws.CommandReset}, false, nil
	}
	if strings.HasPrefix(line, "/") {
		return nil, false, fmt.Errorf("unknown command %s", line)
	}
	return &ws.Command{Type: ws.CommandPrompt, Prompt: line, Stream: stream}, false, nil
}

type rawFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// frameRenderer prints server frames as they arrive.
type frameRenderer struct {
	out     io.Writer
	stream  *streamPrinter
	notices printNotifier

	mu        sync.Mutex
	sessionID string
	lastMap   string
}

func newFrameRenderer(out io.Writer) *frameRenderer {
	return &frameRenderer{
		out:     out,
		stream:  &streamPrinter{w: out},
		notices: printNotifier{w: out},
	}
}

func (r *frameRenderer) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

func (r *frameRenderer) render(data []byte) error {
	var f rawFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	switch f.Type {
	case ws.FrameSession:
		var s ws.SessionData
		if err := json.Unmarshal(f.Data, &s); err != nil {
			return err
		}
		r.mu.Lock()
		r.sessionID = s.SessionID
		r.mu.Unlock()
		verb := "started"
		if s.Resumed {
			verb = "resumed"
		}
		dimColor.Fprintf(r.out, "session %s %s\n", s.SessionID, verb)

	case ws.FrameState:
		var snap mindmap.Snapshot
		if err := json.Unmarshal(f.Data, &snap); err != nil {
			return err
		}
		if snap.IsLoading || snap.MindmapData == "" {
			return nil
		}
		r.mu.Lock()
		changed := snap.MindmapData != r.lastMap
		r.lastMap = snap.MindmapData
		r.mu.Unlock()
		if changed {
			renderOutline(r.out, snap.MindmapData)
		}

	case ws.FrameStream:
		var st mindmap.StreamingState
		if err := json.Unmarshal(f.Data, &st); err != nil {
			return err
		}
		r.stream.update(st)

	case ws.FrameTopicShift:
		var shift ws.TopicShiftData
		if err := json.Unmarshal(f.Data, &shift); err != nil {
			return err
		}
		noticeColor.Fprintf(r.out, "%q looks like a new topic: %s  [/new /continue /dismiss]\n", shift.Prompt, shift.Reason)

	case ws.FrameNotice:
		var n mindmap.Notice
		if err := json.Unmarshal(f.Data, &n); err != nil {
			return err
		}
		r.notices.Notify(n)

	case ws.FrameError:
		var e ws.ErrorData
		if err := json.Unmarshal(f.Data, &e); err != nil {
			return err
		}
		msg := e.Message
		for _, fe := range e.Errors {
			msg += "; " + fe.Message
		}
		errorColor.Fprintln(r.out, msg)

	case ws.FrameThread:
		var t ws.ThreadData
		if err := json.Unmarshal(f.Data, &t); err != nil {
			return err
		}
		dimColor.Fprintf(r.out, "%s %s %s\n", t.Event, t.ThreadID, t.Title)
	}
	// status frames drive the browser UI only
	return nil
}
