package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	internalWS "github.com/Kripu77/prompt-map-sub001/internal/websocket"
)

type WorkspaceHandler struct {
	workspace *internalWS.Workspace
	jwtSecret string
	logger    logger.ILogger
}

func NewWorkspaceHandler(workspace *internalWS.Workspace, jwtSecret string, log logger.ILogger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspace: workspace,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// ServeWs upgrades the request. A valid token (query "token" or bearer
// header) makes the workspace signed-in; otherwise it is anonymous.
func (h *WorkspaceHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	userID, ok := serverutils.UserID(c)
	if !ok {
		userID = uuid.Nil
	}
	peer := internalWS.Peer{
		UserID:    userID,
		SessionID: c.Query("session"),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Referrer:  c.Get(fiber.HeaderReferer),
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.workspace.Serve(conn, peer)
	})(c)
}

func (h *WorkspaceHandler) RegisterRoutes(router fiber.Router) {
	ws := router.Group("/workspace/v1")
	ws.Use(serverutils.OptionalJwtMiddleware(h.jwtSecret))
	ws.Get("/ws", h.ServeWs)
}
