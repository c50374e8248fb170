package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"roomchat/internal/chat"
	"roomchat/internal/models"
	ws "roomchat/internal/websocket"
	"roomchat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ChatServer is the part of the coordinator the upgrade handler drives.
type ChatServer interface {
	ws.Handler
	Connect(conn chat.Conn)
	BindIdentity(connID string, identity models.Identity) error
}

type WebSocketHandlers struct {
	chat     ChatServer
	verifier Verifier
	upgrader websocket.Upgrader
	baseCtx  context.Context
}

// NewWebSocketHandlers upgrades connections for chat. Origins are checked
// against allowedOrigins; "*" allows any. baseCtx bounds every command the
// connections issue.
func NewWebSocketHandlers(baseCtx context.Context, chatServer ChatServer, verifier Verifier, allowedOrigins []string) *WebSocketHandlers {
	return &WebSocketHandlers{
		chat:     chatServer,
		verifier: verifier,
		baseCtx:  baseCtx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// HandleWebSocket serves GET /ws. A token may be given up front, in which
// case it is verified once before upgrading so a bad one gets a plain 401,
// and the resulting identity is bound as soon as the connection registers.
// Otherwise the client must send an authenticate command.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var identity models.Identity
	token := tokenFromRequest(r)
	if token != "" {
		var err error
		if identity, err = h.verifier.Verify(r.Context(), token); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}
	}

	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(uuid.NewString(), conn, h.chat)
	h.chat.Connect(client)

	// Start client pumps
	go client.WritePump()

	if token != "" {
		if err := h.chat.BindIdentity(client.ID(), identity); err != nil {
			logger.Warn("Binding connection %s failed: %v", client.ID(), err)
			client.Send(models.NewEvent(models.ErrorEvent{Code: chat.ErrorCode(err), Message: err.Error()}))
			h.chat.Disconnect(client.ID())
			return
		}
	}

	go client.ReadPump(h.baseCtx)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
