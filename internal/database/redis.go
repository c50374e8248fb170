package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

// DefaultRetention is how many messages per room the Redis store keeps.
const DefaultRetention = 1000

const roomsKey = "roomchat:rooms"

// RedisDB keeps rooms in a hash, each room's messages in a sorted set scored
// by seq, and each message's readers in a sorted set scored by read time.
type RedisDB struct {
	client    *redis.Client
	retention int64
}

func NewRedisDB(ctx context.Context, redisURL string, retention int) (*RedisDB, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	if retention <= 0 {
		retention = DefaultRetention
	}

	logger.Info("Connected to redis successfully")
	return &RedisDB{client: client, retention: int64(retention)}, nil
}

func (db *RedisDB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx).Err()
}

func (db *RedisDB) Close() error {
	return db.client.Close()
}

func roomMessagesKey(roomID string) string {
	return fmt.Sprintf("roomchat:room:%s:messages", roomID)
}

func messageReadersKey(messageID string) string {
	return fmt.Sprintf("roomchat:message:%s:readers", messageID)
}

// storedMessage is the sorted-set member; readers live in their own key.
type storedMessage struct {
	ID        string          `json:"id"`
	Seq       uint64          `json:"seq"`
	RoomID    string          `json:"room_id"`
	Sender    models.Identity `json:"sender"`
	Body      string          `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

func (db *RedisDB) SaveRoom(ctx context.Context, room models.RoomInfo) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return db.client.HSetNX(ctx, roomsKey, room.ID, data).Err()
}

func (db *RedisDB) ListRooms(ctx context.Context) ([]models.RoomInfo, error) {
	raw, err := db.client.HGetAll(ctx, roomsKey).Result()
	if err != nil {
		return nil, err
	}

	rooms := make([]models.RoomInfo, 0, len(raw))
	for id, data := range raw {
		var room models.RoomInfo
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			logger.Warn("Skipping unreadable room %s: %v", id, err)
			continue
		}
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

func (db *RedisDB) AppendMessage(ctx context.Context, msg models.Message) error {
	data, err := json.Marshal(storedMessage{
		ID:        msg.ID,
		Seq:       msg.Seq,
		RoomID:    msg.RoomID,
		Sender:    msg.Sender,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return err
	}

	key := roomMessagesKey(msg.RoomID)
	now := float64(time.Now().UnixNano())

	_, err = db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(msg.Seq), Member: string(data)})
		for i, identityID := range msg.ReadBy {
			pipe.ZAddNX(ctx, messageReadersKey(msg.ID), redis.Z{Score: now + float64(i), Member: identityID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return db.trim(ctx, key)
}

// trim drops the oldest messages beyond the retention limit along with their
// reader sets.
func (db *RedisDB) trim(ctx context.Context, key string) error {
	count, err := db.client.ZCard(ctx, key).Result()
	if err != nil {
		return err
	}
	excess := count - db.retention
	if excess <= 0 {
		return nil
	}

	stale, err := db.client.ZRange(ctx, key, 0, excess-1).Result()
	if err != nil {
		return err
	}

	readerKeys := make([]string, 0, len(stale))
	for _, data := range stale {
		var msg storedMessage
		if err := json.Unmarshal([]byte(data), &msg); err == nil {
			readerKeys = append(readerKeys, messageReadersKey(msg.ID))
		}
	}

	_, err = db.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByRank(ctx, key, 0, excess-1)
		if len(readerKeys) > 0 {
			pipe.Del(ctx, readerKeys...)
		}
		return nil
	})
	return err
}

func (db *RedisDB) LoadRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	raw, err := db.client.ZRevRange(ctx, roomMessagesKey(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var stored storedMessage
		if err := json.Unmarshal([]byte(raw[i]), &stored); err != nil {
			logger.Warn("Skipping unreadable message in room %s: %v", roomID, err)
			continue
		}
		messages = append(messages, models.Message{
			ID:        stored.ID,
			Seq:       stored.Seq,
			RoomID:    stored.RoomID,
			Sender:    stored.Sender,
			Body:      stored.Body,
			CreatedAt: stored.CreatedAt,
		})
	}

	if len(messages) == 0 {
		return messages, nil
	}

	pipe := db.client.Pipeline()
	readers := make([]*redis.StringSliceCmd, len(messages))
	for i, msg := range messages {
		readers[i] = pipe.ZRange(ctx, messageReadersKey(msg.ID), 0, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for i := range messages {
		messages[i].ReadBy = readers[i].Val()
	}
	return messages, nil
}

func (db *RedisDB) MarkRead(ctx context.Context, roomID, messageID, identityID string) error {
	key := messageReadersKey(messageID)

	// Readers of a trimmed message would never be cleaned up.
	exists, err := db.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		logger.Debug("Ignoring read of unknown message %s in room %s", messageID, roomID)
		return nil
	}

	return db.client.ZAddNX(ctx, key, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: identityID,
	}).Err()
}
