package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/models"
)

// exerciseDatabase runs the shared behaviour checks against any store and
// returns the id of the room holding five messages.
func exerciseDatabase(t *testing.T, db Database) string {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, db.Ping(ctx))

	prefix := "t" + ulid.Make().String()
	created := time.Now().UTC().Truncate(time.Millisecond)
	general := models.RoomInfo{ID: prefix + "-general", Name: "General", Description: "Talk", CreatedAt: created}
	random := models.RoomInfo{ID: prefix + "-random", Name: "Random", CreatedAt: created.Add(time.Second)}

	require.NoError(t, db.SaveRoom(ctx, general))
	require.NoError(t, db.SaveRoom(ctx, random))
	require.NoError(t, db.SaveRoom(ctx, models.RoomInfo{ID: general.ID, Name: "Renamed", CreatedAt: created}))

	rooms, err := db.ListRooms(ctx)
	require.NoError(t, err)
	var mine []models.RoomInfo
	for _, r := range rooms {
		if r.ID == general.ID || r.ID == random.ID {
			mine = append(mine, r)
		}
	}
	require.Len(t, mine, 2)
	assert.Equal(t, general.ID, mine[0].ID)
	assert.Equal(t, "General", mine[0].Name)
	assert.Equal(t, "Talk", mine[0].Description)
	assert.True(t, general.CreatedAt.Equal(mine[0].CreatedAt))

	alice := models.Identity{ID: "a", DisplayName: "Alice"}
	var ids []string
	for i := 1; i <= 5; i++ {
		msg := models.Message{
			ID:        ulid.Make().String(),
			Seq:       uint64(i),
			RoomID:    general.ID,
			Sender:    alice,
			Body:      fmt.Sprintf("m%d", i),
			CreatedAt: created.Add(time.Duration(i) * time.Millisecond),
			ReadBy:    []string{alice.ID},
		}
		ids = append(ids, msg.ID)
		require.NoError(t, db.AppendMessage(ctx, msg))
	}

	require.NoError(t, db.MarkRead(ctx, general.ID, ids[4], "b"))
	require.NoError(t, db.MarkRead(ctx, general.ID, ids[4], "b"))
	require.NoError(t, db.MarkRead(ctx, general.ID, "missing", "b"))

	recent, err := db.LoadRecentMessages(ctx, general.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"m3", "m4", "m5"}, []string{recent[0].Body, recent[1].Body, recent[2].Body})
	assert.Equal(t, uint64(5), recent[2].Seq)
	assert.Equal(t, alice, recent[2].Sender)
	assert.Equal(t, []string{"a"}, recent[0].ReadBy)
	assert.Equal(t, []string{"a", "b"}, recent[2].ReadBy)

	empty, err := db.LoadRecentMessages(ctx, random.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	return general.ID
}

func TestMemoryDB(t *testing.T) {
	exerciseDatabase(t, NewMemoryDB())
}

func TestMemoryDB_CopiesReaders(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	readers := []string{"a"}
	require.NoError(t, db.AppendMessage(ctx, models.Message{ID: "1", RoomID: "r", ReadBy: readers}))
	readers[0] = "mutated"

	msgs, err := db.LoadRecentMessages(ctx, "r", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"a"}, msgs[0].ReadBy)

	msgs[0].ReadBy[0] = "again"
	msgs, _ = db.LoadRecentMessages(ctx, "r", 10)
	assert.Equal(t, []string{"a"}, msgs[0].ReadBy)
}

func TestPostgresDB(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}

	ctx := context.Background()
	db, err := NewPostgresDB(ctx, url)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.EnsureSchema(ctx))

	exerciseDatabase(t, db)
}

func TestRedisDB(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping redis integration test")
	}

	ctx := context.Background()
	db, err := NewRedisDB(ctx, url, 4)
	require.NoError(t, err)
	defer db.Close()

	roomID := exerciseDatabase(t, db)

	// Retention of 4 trimmed the first of five messages.
	msgs, err := db.LoadRecentMessages(ctx, roomID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "m2", msgs[0].Body)
}
