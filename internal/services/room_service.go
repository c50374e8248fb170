package services

import (
	"context"
	"fmt"

	"roomchat/internal/chat"
	"roomchat/internal/database"
	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

const MaxHistoryLimit = 500

// RoomService serves the REST view of rooms. Live state comes from the
// coordinator; the store, when present, backs history beyond what a room
// keeps in memory.
type RoomService struct {
	chat *chat.Coordinator
	db   database.MessageRepository
}

func NewRoomService(coordinator *chat.Coordinator, db database.MessageRepository) *RoomService {
	return &RoomService{chat: coordinator, db: db}
}

func (s *RoomService) CreateRoom(ctx context.Context, req *models.CreateRoomRequest) (models.RoomSummary, error) {
	if req.Name == "" {
		return models.RoomSummary{}, fmt.Errorf("room name is required: %w", chat.ErrInvalidRoomName)
	}

	return s.chat.CreateRoom(req.Name, req.Description)
}

func (s *RoomService) ListRooms(ctx context.Context) []models.RoomSummary {
	return s.chat.ListRooms()
}

// RoomMessages returns up to limit of the most recent messages, oldest
// first. The store is consulted only when memory holds fewer than limit.
func (s *RoomService) RoomMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	live, err := s.chat.History(roomID)
	if err != nil {
		return nil, err
	}
	if len(live) >= limit || s.db == nil {
		return tail(live, limit), nil
	}

	stored, err := s.db.LoadRecentMessages(ctx, roomID, limit)
	if err != nil {
		logger.Error("Error loading messages for room %s: %v", roomID, err)
		return tail(live, limit), nil
	}

	return tail(merge(stored, live), limit), nil
}

func (s *RoomService) OnlineUsers(ctx context.Context) []models.Identity {
	return s.chat.OnlineUsers()
}

// merge joins stored and live history on seq. Live copies win since their
// read sets may be ahead of the archive.
func merge(stored, live []models.Message) []models.Message {
	if len(live) == 0 {
		return stored
	}

	first := live[0].Seq
	out := make([]models.Message, 0, len(stored)+len(live))
	for _, msg := range stored {
		if msg.Seq < first {
			out = append(out, msg)
		}
	}
	return append(out, live...)
}

func tail(msgs []models.Message, limit int) []models.Message {
	if len(msgs) > limit {
		return msgs[len(msgs)-limit:]
	}
	return msgs
}
