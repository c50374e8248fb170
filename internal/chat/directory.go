package chat

import (
	"strings"
	"sync"

	"roomchat/internal/models"
)

// Directory holds the set of rooms. Its lock covers the room map only;
// per-room state lives behind each room's own mutex.
type Directory struct {
	mu         sync.RWMutex
	rooms      map[string]*room
	order      []string
	historyCap int
}

func NewDirectory(historyCap int) *Directory {
	return &Directory{
		rooms:      make(map[string]*room),
		historyCap: historyCap,
	}
}

// NormalizeRoomID derives a room id from a display name: lower-cased,
// trimmed, whitespace runs collapsed to a single "-".
func NormalizeRoomID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// addLocked registers a room; callers hold d.mu for writing.
func (d *Directory) addLocked(info models.RoomInfo) (*room, error) {
	if _, exists := d.rooms[info.ID]; exists {
		return nil, ErrRoomAlreadyExists
	}
	r := newRoom(info, d.historyCap)
	d.rooms[info.ID] = r
	d.order = append(d.order, info.ID)
	return r, nil
}

func (d *Directory) get(roomID string) (*room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[roomID]
	return r, ok
}

func (d *Directory) all() []*room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rooms := make([]*room, 0, len(d.order))
	for _, id := range d.order {
		rooms = append(rooms, d.rooms[id])
	}
	return rooms
}

// List returns summaries in creation order. Each count is read under its
// room lock, so the view is consistent per room but may lag concurrent joins.
func (d *Directory) List() []models.RoomSummary {
	rooms := d.all()
	out := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.summary())
	}
	return out
}
