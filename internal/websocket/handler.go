package websocket

import (
	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
)

const workspaceModule = "Workspace"

// Workspace wires sockets to sessions.
type Workspace struct {
	hub      *Hub
	sessions *SessionStore
	deps     Collaborators
	logger   logger.ILogger
}

func NewWorkspace(hub *Hub, sessions *SessionStore, deps Collaborators, log logger.ILogger) *Workspace {
	return &Workspace{hub: hub, sessions: sessions, deps: deps, logger: log}
}

func (w *Workspace) Hub() *Hub {
	return w.hub
}

// Peer describes the connecting client as seen during the handshake.
type Peer struct {
	UserID    uuid.UUID // uuid.Nil when anonymous
	SessionID string    // session to resume, may be empty
	UserAgent string
	Referrer  string
}

// Serve runs one connection until it closes. The session is kept for resume.
func (w *Workspace) Serve(conn Conn, peer Peer) {
	session, resumed := w.session(peer)

	client := NewClient(w.hub, conn, peer.UserID, session, w.logger)
	if !session.Attach(client.push, peer.UserAgent, peer.Referrer, resumed) {
		// another socket holds it; start fresh rather than steal it
		session = w.newSession(peer.UserID)
		client.Session = session
		resumed = false
		session.Attach(client.push, peer.UserAgent, peer.Referrer, false)
	}
	w.sessions.Hold(session)
	w.hub.Register(client)

	w.logger.Info(workspaceModule, "Workspace attached", map[string]interface{}{
		"session_id": session.ID,
		"user_id":    peer.UserID.String(),
		"resumed":    resumed,
	})

	go client.writePump()
	client.readPump()

	// the idle TTL starts now
	session.Detach()
	w.sessions.Save(session)
	w.logger.Info(workspaceModule, "Workspace detached", map[string]interface{}{"session_id": session.ID})
}

func (w *Workspace) session(peer Peer) (*Session, bool) {
	if peer.SessionID != "" {
		if s, ok := w.sessions.Get(peer.SessionID); ok && !s.Closed() && sameOwner(s.UserID, peer.UserID) {
			return s, true
		}
	}
	return w.newSession(peer.UserID), false
}

func (w *Workspace) newSession(userID uuid.UUID) *Session {
	var owner *uuid.UUID
	if userID != uuid.Nil {
		id := userID
		owner = &id
	}
	s := NewSession(uuid.NewString(), owner, w.deps, w.logger)
	w.sessions.Save(s)
	return s
}

func sameOwner(owner *uuid.UUID, userID uuid.UUID) bool {
	if owner == nil {
		return userID == uuid.Nil
	}
	return *owner == userID
}
