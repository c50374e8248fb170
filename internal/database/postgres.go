package database

import (
	"context"
	"fmt"

	"roomchat/internal/models"
	"roomchat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	room_id     TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	seq         BIGINT NOT NULL,
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	body        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS messages_room_seq_idx ON messages (room_id, seq DESC);

CREATE TABLE IF NOT EXISTS message_reads (
	message_id  TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	identity_id TEXT NOT NULL,
	read_at     TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	PRIMARY KEY (message_id, identity_id)
);`

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist yet.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// Room Repository Implementation
func (db *PostgresDB) SaveRoom(ctx context.Context, room models.RoomInfo) error {
	query := `
		INSERT INTO rooms (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	if _, err := db.pool.Exec(ctx, query, room.ID, room.Name, room.Description, room.CreatedAt); err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

func (db *PostgresDB) ListRooms(ctx context.Context) ([]models.RoomInfo, error) {
	query := `SELECT id, name, description, created_at FROM rooms ORDER BY created_at, id`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.RoomInfo
	for rows.Next() {
		var room models.RoomInfo
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// Message Repository Implementation
func (db *PostgresDB) AppendMessage(ctx context.Context, msg models.Message) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO messages (id, room_id, seq, sender_id, sender_name, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err = tx.Exec(ctx, query,
		msg.ID, msg.RoomID, int64(msg.Seq), msg.Sender.ID, msg.Sender.DisplayName, msg.Body, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	batch := &pgx.Batch{}
	for _, identityID := range msg.ReadBy {
		batch.Queue(`
			INSERT INTO message_reads (message_id, identity_id) VALUES ($1, $2)
			ON CONFLICT (message_id, identity_id) DO NOTHING`, msg.ID, identityID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save readers: %w", err)
	}

	return tx.Commit(ctx)
}

func (db *PostgresDB) LoadRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	query := `
		SELECT m.id, m.seq, m.room_id, m.sender_id, m.sender_name, m.body, m.created_at,
		       COALESCE(array_agg(r.identity_id ORDER BY r.read_at, r.identity_id)
		                FILTER (WHERE r.identity_id IS NOT NULL), '{}')
		FROM messages m
		LEFT JOIN message_reads r ON r.message_id = m.id
		WHERE m.room_id = $1
		GROUP BY m.id
		ORDER BY m.seq DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg models.Message
			seq int64
		)
		if err := rows.Scan(
			&msg.ID, &seq, &msg.RoomID, &msg.Sender.ID, &msg.Sender.DisplayName, &msg.Body, &msg.CreatedAt, &msg.ReadBy,
		); err != nil {
			return nil, err
		}
		msg.Seq = uint64(seq)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// Receipt Repository Implementation
func (db *PostgresDB) MarkRead(ctx context.Context, roomID, messageID, identityID string) error {
	query := `
		INSERT INTO message_reads (message_id, identity_id)
		SELECT id, $3 FROM messages WHERE id = $2 AND room_id = $1
		ON CONFLICT (message_id, identity_id) DO NOTHING`

	_, err := db.pool.Exec(ctx, query, roomID, messageID, identityID)
	return err
}
