package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/metrics"
	"github.com/Kripu77/prompt-map-sub001/pkg/events"
)

const (
	hubModule = "WorkspaceHub"
	// ClusterChannel carries user-targeted frames between instances.
	ClusterChannel = "promptmap:workspace"
)

type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// Hub tracks connected workspace clients. Signed-in clients are indexed by
// user so frames can reach every device of that user.
type Hub struct {
	// UserID -> clients (multi-device). Anonymous clients only count.
	clients   map[uuid.UUID][]*Client
	anonymous int

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, optional
	rdb      *redis.Client
	instance string

	metrics *metrics.Metrics
	logger  logger.ILogger
}

func NewHub(rdb *redis.Client, m *metrics.Metrics, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		rdb:        rdb,
		instance:   uuid.NewString(),
		metrics:    m,
		logger:     log,
	}
}

// Run processes registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if client.UserID == uuid.Nil {
				h.anonymous++
			} else {
				h.clients[client.UserID] = append(h.clients[client.UserID], client)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.WorkspaceConnections.Inc()
			}
			h.logger.Info(hubModule, "Client registered", map[string]interface{}{
				"user_id":    client.UserID.String(),
				"session_id": client.Session.ID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			removed := h.removeLocked(client)
			h.mu.Unlock()
			if removed && h.metrics != nil {
				h.metrics.WorkspaceConnections.Dec()
			}
		}
	}
}

// Register and Unregister return immediately once Run has stopped.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

func (h *Hub) removeLocked(client *Client) bool {
	if client.UserID == uuid.Nil {
		if h.anonymous == 0 {
			return false
		}
		h.anonymous--
		return true
	}
	clients, ok := h.clients[client.UserID]
	if !ok {
		return false
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
			if len(h.clients[client.UserID]) == 0 {
				delete(h.clients, client.UserID)
				h.logger.Info(hubModule, "User has no open workspaces", map[string]interface{}{"user_id": client.UserID.String()})
			}
			return true
		}
	}
	return false
}

// Connections reports how many sockets are open for userID.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userID == uuid.Nil {
		return h.anonymous
	}
	return len(h.clients[userID])
}

// SendToUser delivers f to every socket of userID, here and on other instances.
func (h *Hub) SendToUser(userID uuid.UUID, f Frame) {
	data, err := encodeFrame(f)
	if err != nil {
		h.logger.Error(hubModule, "Failed to encode frame", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliverLocal(userID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:       h.instance,
			TargetUserID: userID.String(),
			Message:      data,
		})
		if err := h.rdb.Publish(context.Background(), ClusterChannel, payload).Err(); err != nil {
			h.logger.Warn(hubModule, "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliverLocal(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[userID]...)
	h.mu.RUnlock()

	for _, client := range clients {
		client.enqueue(data)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn(hubModule, "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.instance {
				continue
			}
			uid, err := uuid.Parse(payload.TargetUserID)
			if err != nil {
				continue
			}
			h.deliverLocal(uid, payload.Message)
		}
	}
}

// Relay wraps an event publisher so thread lifecycle events also reach the
// owner's open workspaces.
func (h *Hub) Relay(next events.Publisher) events.Publisher {
	if next == nil {
		next = events.NopPublisher{}
	}
	return &relayPublisher{hub: h, next: next}
}

type relayPublisher struct {
	hub  *Hub
	next events.Publisher
}

func (p *relayPublisher) Publish(ctx context.Context, event events.Event) error {
	err := p.next.Publish(ctx, event)

	data := event.Payload()
	rawUser, _ := data["user_id"].(string)
	userID, perr := uuid.Parse(rawUser)
	if perr != nil || userID == uuid.Nil {
		return err
	}
	threadID, _ := data["thread_id"].(string)
	title, _ := data["title"].(string)
	p.hub.SendToUser(userID, Frame{Type: FrameThread, Data: ThreadData{
		Event:    event.EventType(),
		ThreadID: threadID,
		Title:    title,
	}})
	return err
}
