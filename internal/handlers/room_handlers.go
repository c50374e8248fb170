package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"roomchat/internal/models"
	"roomchat/internal/services"
	"roomchat/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type RoomHandlers struct {
	roomService *services.RoomService
}

func NewRoomHandlers(roomService *services.RoomService) *RoomHandlers {
	return &RoomHandlers{roomService: roomService}
}

func (h *RoomHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
		return
	}

	room, err := h.roomService.CreateRoom(r.Context(), &req)
	if err != nil {
		logger.Debug("Create room error: %v", err)
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": h.roomService.ListRooms(r.Context()),
	})
}

// GetRoomMessages serves GET /rooms/{id}/messages?limit=N.
func (h *RoomHandlers) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
			return
		}
		limit = n
	}

	messages, err := h.roomService.RoomMessages(r.Context(), roomID, limit)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room_id":  roomID,
		"messages": messages,
		"count":    len(messages),
	})
}

func (h *RoomHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := h.roomService.OnlineUsers(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}
