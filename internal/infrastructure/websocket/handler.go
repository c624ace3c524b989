package websocket

import (
	"net/http"
	"time"

	"arcade-system/internal/domain"
	"arcade-system/internal/game"
	"arcade-system/internal/protocol"
	"arcade-system/internal/services"
	"arcade-system/pkg/logger"
	"arcade-system/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Handler accepts websocket connections. The transport is only upgraded
// after the session token resolves to an authenticated user id; a
// connection without one is rejected before any command is processed.
type Handler struct {
	sessions   domain.SessionStore
	registry   *Registry
	router     *services.Router
	matchmaker *services.Matchmaker
	games      *game.Manager
	log        logger.Logger
}

func NewHandler(sessions domain.SessionStore, registry *Registry, router *services.Router,
	matchmaker *services.Matchmaker, games *game.Manager, log logger.Logger) *Handler {
	return &Handler{
		sessions:   sessions,
		registry:   registry,
		router:     router,
		matchmaker: matchmaker,
		games:      games,
		log:        log,
	}
}

func (h *Handler) Handle(c echo.Context) error {
	token := c.QueryParam("session")
	if token == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "session token required"})
	}

	userID, err := h.sessions.UserID(c.Request().Context(), token)
	if err != nil {
		h.log.Info("Rejected connection - invalid session", "error", err)
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid session"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return nil
	}

	conn := NewConn(utils.GenerateID("conn"), userID, ws, h.log)
	h.registry.Register(conn)
	h.registry.JoinRoom(conn.ID(), domain.UserRoom(userID))

	// A reconnect during the forfeit grace rejoins the game room so the
	// next snapshot overwrites whatever the client last saw.
	if gameID, ok := h.games.PlayerReconnected(userID); ok {
		h.registry.JoinRoom(conn.ID(), domain.GameRoom(gameID))
	}

	go h.readLoop(conn)
	return nil
}

func (h *Handler) readLoop(conn *Conn) {
	defer func() {
		userID := conn.UserID()
		h.registry.Deregister(conn.ID())
		conn.Close()
		if !h.registry.IsUserOnline(userID) {
			h.matchmaker.HandleDisconnect(userID)
			h.games.PlayerDisconnected(userID)
		}
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			h.log.Debug("Read failed", "conn_id", conn.ID(), "error", err)
			return
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			// Malformed frame: reject it, keep the connection.
			conn.Send(protocol.MustEncodeFrame(domain.TagValidationError, 0,
				domain.ErrorResult{Message: "malformed frame"}))
			continue
		}

		if h.handleGameEvent(conn, frame) {
			continue
		}

		resp := h.router.DispatchFrame(conn, frame)
		if err := conn.Send(resp); err != nil {
			h.log.Debug("Failed to send result", "conn_id", conn.ID(), "error", err)
		}
	}
}

// handleGameEvent dispatches the lighter-weight matchmaking/game events.
// Returns false when the tag belongs to the command protocol.
func (h *Handler) handleGameEvent(conn *Conn, frame *protocol.Frame) bool {
	userID := conn.UserID()

	switch frame.Tag {
	case domain.EventJoinMatchmaking:
		var ev domain.JoinMatchmakingEvent
		if err := protocol.DecodePayload(frame, &ev); err != nil {
			h.sendEventError(conn, frame.Ref, err)
			return true
		}
		h.replyOnError(conn, frame.Ref, h.matchmaker.JoinMatchmaking(userID, ev.Mode))

	case domain.EventLeaveMatchmaking:
		h.replyOnError(conn, frame.Ref, h.matchmaker.LeaveMatchmaking(userID))

	case domain.EventSendGameInvite:
		var ev domain.SendGameInviteEvent
		if err := protocol.DecodePayload(frame, &ev); err != nil {
			h.sendEventError(conn, frame.Ref, err)
			return true
		}
		h.replyOnError(conn, frame.Ref, h.matchmaker.SendInvite(userID, ev.UserID, ev.Mode))

	case domain.EventCancelGameInvite:
		h.replyOnError(conn, frame.Ref, h.matchmaker.CancelInvite(userID))

	case domain.EventAcceptInvitation:
		var ev domain.InvitationEvent
		if err := protocol.DecodePayload(frame, &ev); err != nil {
			h.sendEventError(conn, frame.Ref, err)
			return true
		}
		h.replyOnError(conn, frame.Ref, h.matchmaker.AcceptInvite(userID, ev.InviteID))

	case domain.EventRefuseInvitation:
		var ev domain.InvitationEvent
		if err := protocol.DecodePayload(frame, &ev); err != nil {
			h.sendEventError(conn, frame.Ref, err)
			return true
		}
		h.replyOnError(conn, frame.Ref, h.matchmaker.RefuseInvite(userID, ev.InviteID))

	case domain.EventMovePadUp:
		h.padInput(conn, frame, game.InputUp)
	case domain.EventMovePadDown:
		h.padInput(conn, frame, game.InputDown)
	case domain.EventStopPad:
		h.padInput(conn, frame, game.InputStill)

	default:
		return false
	}
	return true
}

func (h *Handler) padInput(conn *Conn, frame *protocol.Frame, input game.PaddleInput) {
	var ev domain.PadEvent
	if err := protocol.DecodePayload(frame, &ev); err != nil {
		h.sendEventError(conn, frame.Ref, err)
		return
	}
	// Input for an unknown game or from a non-player is ignored.
	h.games.Input(ev.GameID, conn.UserID(), input)
}

func (h *Handler) replyOnError(conn *Conn, ref uint32, err error) {
	if err == nil {
		return
	}
	h.sendEventError(conn, ref, err)
}

func (h *Handler) sendEventError(conn *Conn, ref uint32, err error) {
	conn.Send(protocol.MustEncodeFrame(domain.TagError, ref,
		domain.ErrorResult{Message: services.SafeMessage(err)}))
}
