package database

import (
	"context"

	"roomchat/internal/models"
)

type RoomRepository interface {
	// SaveRoom is idempotent: storing a room id twice keeps the first record.
	SaveRoom(ctx context.Context, room models.RoomInfo) error
	ListRooms(ctx context.Context) ([]models.RoomInfo, error)
}

type MessageRepository interface {
	AppendMessage(ctx context.Context, msg models.Message) error
	// LoadRecentMessages returns at most limit messages of the room, oldest
	// first, each with its readers in read order.
	LoadRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

type ReceiptRepository interface {
	MarkRead(ctx context.Context, roomID, messageID, identityID string) error
}

type Database interface {
	RoomRepository
	MessageRepository
	ReceiptRepository
	Ping(ctx context.Context) error
	Close() error
}
