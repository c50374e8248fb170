package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/models"
)

func TestMarkRead_Idempotent(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	room := mustCreate(t, c, "General")

	a := connect(t, c, "a", "a:Alice")
	b := connect(t, c, "b", "b:Bob")
	require.NoError(t, c.Join("a", room))
	require.NoError(t, c.Join("b", room))

	msg, err := c.Send("a", "", "hi")
	require.NoError(t, err)

	require.NoError(t, c.MarkRead("b", "", msg.ID))
	require.NoError(t, c.MarkRead("b", room, msg.ID))

	readBy, ok := c.ReadBy(room, msg.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, readBy)

	receipts := payloads[models.ReadReceipt](a)
	require.Len(t, receipts, 1)
	assert.Equal(t, msg.ID, receipts[0].MessageID)
	assert.Equal(t, "b", receipts[0].Identity.ID)
	assert.Empty(t, payloads[models.ReadReceipt](b))

	// The sender is already a reader.
	require.NoError(t, c.MarkRead("a", "", msg.ID))
	assert.Empty(t, payloads[models.ReadReceipt](b))

	msgs, err := c.History(room)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, msgs[0].ReadBy)
}

func TestMarkRead_EvictedMessageIsNoop(t *testing.T) {
	c := newTestCoordinator(t, Options{HistoryCap: 1})
	room := mustCreate(t, c, "General")

	a := connect(t, c, "a", "a:Alice")
	connect(t, c, "b", "b:Bob")
	require.NoError(t, c.Join("a", room))
	require.NoError(t, c.Join("b", room))

	first, err := c.Send("a", "", "one")
	require.NoError(t, err)
	_, err = c.Send("a", "", "two")
	require.NoError(t, err)

	assert.NoError(t, c.MarkRead("b", "", first.ID))
	assert.NoError(t, c.MarkRead("b", "", "unknown"))
	assert.Empty(t, payloads[models.ReadReceipt](a))

	_, ok := c.ReadBy(room, first.ID)
	assert.False(t, ok)
}

func TestMarkRead_RequiresMembership(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	room := mustCreate(t, c, "General")

	connect(t, c, "a", "a:Alice")
	connect(t, c, "b", "b:Bob")
	require.NoError(t, c.Join("a", room))

	msg, err := c.Send("a", "", "hi")
	require.NoError(t, err)

	assert.ErrorIs(t, c.MarkRead("b", "", msg.ID), ErrNotInRoom)

	readBy, _ := c.ReadBy(room, msg.ID)
	assert.Equal(t, []string{"a"}, readBy)
}
