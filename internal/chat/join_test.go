package chat

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/models"
)

func TestJoin_HistoryScenario(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	general := mustCreate(t, c, "General")

	a := connect(t, c, "a", "a:Alice")
	require.NoError(t, c.Join("a", general))

	hist := payloads[models.RoomHistory](a)
	require.Len(t, hist, 1)
	assert.Empty(t, hist[0].Messages)

	_, err := c.Send("a", "", "hi")
	require.NoError(t, err)

	b := connect(t, c, "b", "b:Bob")
	require.NoError(t, c.Join("b", general))

	bHist := payloads[models.RoomHistory](b)
	require.Len(t, bHist, 1)
	assert.Equal(t, []string{"hi"}, bodies(bHist[0].Messages))
	assert.Empty(t, payloads[models.MessageReceived](b))

	sent, err := c.Send("a", "", "there")
	require.NoError(t, err)

	aGot := payloads[models.MessageReceived](a)
	bGot := payloads[models.MessageReceived](b)
	require.Len(t, aGot, 2)
	require.Len(t, bGot, 1)
	assert.Equal(t, sent.ID, aGot[1].Message.ID)
	assert.Equal(t, sent.ID, bGot[0].Message.ID)
	assert.Equal(t, "there", bGot[0].Message.Body)

	joined := payloads[models.MemberJoined](a)
	require.Len(t, joined, 1)
	assert.Equal(t, "b", joined[0].Identity.ID)
}

func TestJoin_LeaveBeforeJoin(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	x := mustCreate(t, c, "x")
	y := mustCreate(t, c, "y")

	connect(t, c, "a", "a:Alice")
	xPeer := connect(t, c, "c", "c:Carol")
	yPeer := connect(t, c, "d", "d:Dave")
	require.NoError(t, c.Join("a", x))
	require.NoError(t, c.Join("c", x))
	require.NoError(t, c.Join("d", y))
	xPeer.reset()
	yPeer.reset()

	require.NoError(t, c.Join("a", y))

	left, ok := seqOf(xPeer, func(p models.MemberLeft) bool { return p.RoomID == x && p.Identity.ID == "a" })
	require.True(t, ok)
	joined, ok := seqOf(yPeer, func(p models.MemberJoined) bool { return p.RoomID == y && p.Identity.ID == "a" })
	require.True(t, ok)
	assert.Less(t, left, joined)

	// Global room_updated events show x losing the member before y gains it.
	xDown, ok := seqOf(yPeer, func(p models.RoomUpdated) bool { return p.RoomID == x && p.MemberCount == 1 })
	require.True(t, ok)
	yUp, ok := seqOf(yPeer, func(p models.RoomUpdated) bool { return p.RoomID == y && p.MemberCount == 2 })
	require.True(t, ok)
	assert.Less(t, xDown, yUp)

	room, ok := c.CurrentRoom("a")
	require.True(t, ok)
	assert.Equal(t, y, room)
}

func TestJoin_UnknownRoomKeepsMembership(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	x := mustCreate(t, c, "x")

	connect(t, c, "a", "a:Alice")
	peer := connect(t, c, "b", "b:Bob")
	require.NoError(t, c.Join("a", x))
	require.NoError(t, c.Join("b", x))
	peer.reset()

	err := c.Join("a", "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, "room_not_found", ErrorCode(err))

	room, ok := c.CurrentRoom("a")
	require.True(t, ok)
	assert.Equal(t, x, room)
	assert.Empty(t, payloads[models.MemberLeft](peer))
	assert.Equal(t, 2, c.ListRooms()[0].MemberCount)
}

func TestJoin_SameRoomResendsHistoryOnly(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	x := mustCreate(t, c, "x")

	a := connect(t, c, "a", "a:Alice")
	peer := connect(t, c, "b", "b:Bob")
	require.NoError(t, c.Join("b", x))
	require.NoError(t, c.Join("a", x))
	require.NoError(t, c.Join("a", x))

	assert.Len(t, payloads[models.RoomHistory](a), 2)
	assert.Len(t, payloads[models.MemberJoined](peer), 1)
	assert.Equal(t, 2, c.ListRooms()[0].MemberCount)
}

func TestLeave(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	x := mustCreate(t, c, "x")

	connect(t, c, "a", "a:Alice")
	peer := connect(t, c, "b", "b:Bob")

	require.NoError(t, c.Leave("a"))

	require.NoError(t, c.Join("a", x))
	require.NoError(t, c.Join("b", x))
	require.NoError(t, c.Leave("a"))

	left := payloads[models.MemberLeft](peer)
	require.Len(t, left, 1)
	assert.Equal(t, "a", left[0].Identity.ID)

	_, ok := c.CurrentRoom("a")
	assert.False(t, ok)
	_, err := c.Send("a", "", "hello?")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestDisconnect_LeavesRoom(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	x := mustCreate(t, c, "x")

	a := connect(t, c, "a", "a:Alice")
	peer := connect(t, c, "b", "b:Bob")
	require.NoError(t, c.Join("a", x))
	require.NoError(t, c.Join("b", x))

	c.Disconnect("a")

	assert.True(t, a.isClosed())
	assert.Len(t, payloads[models.MemberLeft](peer), 1)
	assert.Equal(t, 1, c.ListRooms()[0].MemberCount)
	assert.ErrorIs(t, c.Join("a", x), ErrNotBound)
}

func TestJoin_ConcurrentSingleRoomInvariant(t *testing.T) {
	c := newTestCoordinator(t, Options{})

	var rooms []string
	for i := 0; i < 4; i++ {
		rooms = append(rooms, mustCreate(t, c, fmt.Sprintf("room %d", i)))
	}

	const conns = 8
	for i := 0; i < conns; i++ {
		connect(t, c, fmt.Sprintf("c%d", i), fmt.Sprintf("u%d:User %d", i%3, i))
	}

	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(connID string, seed int64) {
				defer wg.Done()
				rnd := rand.New(rand.NewSource(seed))
				for n := 0; n < 50; n++ {
					switch rnd.Intn(5) {
					case 0:
						_ = c.Leave(connID)
					case 1:
						_, _ = c.Send(connID, "", "ping")
					default:
						_ = c.Join(connID, rooms[rnd.Intn(len(rooms))])
					}
				}
			}(fmt.Sprintf("c%d", i), int64(i*10+g))
		}
	}
	wg.Wait()

	memberships := make(map[string][]string)
	total := 0
	for _, r := range c.rooms.all() {
		r.mu.Lock()
		for connID := range r.members {
			memberships[connID] = append(memberships[connID], r.info.ID)
		}
		total += len(r.members)
		r.mu.Unlock()
	}

	for i := 0; i < conns; i++ {
		connID := fmt.Sprintf("c%d", i)
		current, ok := c.CurrentRoom(connID)
		if !ok {
			assert.Empty(t, memberships[connID], connID)
			continue
		}
		assert.Equal(t, []string{current}, memberships[connID], connID)
	}

	counted := 0
	for _, summary := range c.ListRooms() {
		counted += summary.MemberCount
	}
	assert.Equal(t, total, counted)
}
