package database

import (
	"context"
	"sort"
	"sync"

	"roomchat/internal/models"
)

// MemoryDB is the in-process store used when no database is configured.
// Nothing survives a restart.
type MemoryDB struct {
	mu       sync.RWMutex
	rooms    map[string]models.RoomInfo
	messages map[string][]models.Message // room id -> messages in append order
	byID     map[string]*messageRef
}

type messageRef struct {
	roomID string
	index  int
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		rooms:    make(map[string]models.RoomInfo),
		messages: make(map[string][]models.Message),
		byID:     make(map[string]*messageRef),
	}
}

func (db *MemoryDB) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (db *MemoryDB) Close() error {
	return nil
}

func (db *MemoryDB) SaveRoom(ctx context.Context, room models.RoomInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.rooms[room.ID]; !ok {
		db.rooms[room.ID] = room
	}
	return nil
}

func (db *MemoryDB) ListRooms(ctx context.Context) ([]models.RoomInfo, error) {
	db.mu.RLock()
	rooms := make([]models.RoomInfo, 0, len(db.rooms))
	for _, room := range db.rooms {
		rooms = append(rooms, room)
	}
	db.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

func (db *MemoryDB) AppendMessage(ctx context.Context, msg models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.byID[msg.ID]; ok {
		return nil
	}
	msg.ReadBy = append([]string(nil), msg.ReadBy...)
	db.byID[msg.ID] = &messageRef{roomID: msg.RoomID, index: len(db.messages[msg.RoomID])}
	db.messages[msg.RoomID] = append(db.messages[msg.RoomID], msg)
	return nil
}

func (db *MemoryDB) LoadRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	all := db.messages[roomID]
	if limit < 0 {
		limit = 0
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]models.Message, len(all))
	for i, msg := range all {
		msg.ReadBy = append([]string(nil), msg.ReadBy...)
		out[i] = msg
	}
	return out, nil
}

func (db *MemoryDB) MarkRead(ctx context.Context, roomID, messageID, identityID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ref, ok := db.byID[messageID]
	if !ok || ref.roomID != roomID {
		return nil
	}

	msg := &db.messages[roomID][ref.index]
	for _, id := range msg.ReadBy {
		if id == identityID {
			return nil
		}
	}
	msg.ReadBy = append(msg.ReadBy, identityID)
	return nil
}
