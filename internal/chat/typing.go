package chat

import (
	"sync"
	"time"

	"roomchat/internal/metrics"
	"roomchat/internal/models"
)

// TypingTracker keeps the ephemeral "currently typing" set per room. Each
// entry owns a timer that evicts it at its deadline; the tracker's lock is
// never held while calling back into the coordinator.
type TypingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	rooms   map[string]map[string]*typingEntry // room id -> identity id -> entry
	onEvict func(roomID string)
	stopped bool
}

type typingEntry struct {
	identity models.Identity
	deadline time.Time
	timer    *time.Timer
}

func NewTypingTracker(timeout time.Duration, onEvict func(roomID string)) *TypingTracker {
	return &TypingTracker{
		timeout: timeout,
		rooms:   make(map[string]map[string]*typingEntry),
		onEvict: onEvict,
	}
}

// Start inserts or refreshes the identity's entry in roomID.
func (t *TypingTracker) Start(roomID string, identity models.Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	entries, ok := t.rooms[roomID]
	if !ok {
		entries = make(map[string]*typingEntry)
		t.rooms[roomID] = entries
	}
	if old, ok := entries[identity.ID]; ok {
		old.timer.Stop()
	}

	entry := &typingEntry{identity: identity, deadline: time.Now().Add(t.timeout)}
	entry.timer = time.AfterFunc(t.timeout, func() { t.expire(roomID, identity.ID, entry) })
	entries[identity.ID] = entry
}

// Stop removes the identity's entry and reports whether one existed.
func (t *TypingTracker) Stop(roomID, identityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.rooms[roomID][identityID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	t.deleteLocked(roomID, identityID)
	return true
}

// Users returns the identities typing in roomID whose deadline has not
// passed, ordered by display name.
func (t *TypingTracker) Users(roomID string) []models.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	users := make([]models.Identity, 0, len(t.rooms[roomID]))
	for _, entry := range t.rooms[roomID] {
		if entry.deadline.After(now) {
			users = append(users, entry.identity)
		}
	}
	sortIdentities(users)
	return users
}

// Close stops every pending timer. Later calls to Start are ignored.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for roomID, entries := range t.rooms {
		for _, entry := range entries {
			entry.timer.Stop()
		}
		delete(t.rooms, roomID)
	}
}

func (t *TypingTracker) expire(roomID, identityID string, entry *typingEntry) {
	t.mu.Lock()
	if t.rooms[roomID][identityID] != entry {
		// Refreshed or removed since this timer was armed.
		t.mu.Unlock()
		return
	}
	t.deleteLocked(roomID, identityID)
	t.mu.Unlock()

	metrics.TypingEvictions.Inc()
	if t.onEvict != nil {
		t.onEvict(roomID)
	}
}

func (t *TypingTracker) deleteLocked(roomID, identityID string) {
	entries := t.rooms[roomID]
	delete(entries, identityID)
	if len(entries) == 0 {
		delete(t.rooms, roomID)
	}
}

// SetTyping records or clears the caller's typing state in its current room
// and sends the updated set to the other members.
func (c *Coordinator) SetTyping(connID, roomID string, isTyping bool) error {
	s, err := c.lockBound(connID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	r, err := c.currentRoomLocked(s, roomID)
	if err != nil {
		return err
	}

	if isTyping {
		c.typing.Start(r.info.ID, s.identity)
	} else {
		c.typing.Stop(r.info.ID, s.identity.ID)
	}
	c.broadcastTyping(r.info.ID, connID)
	return nil
}

// broadcastTyping sends the room's live typing set to its members, skipping
// except when non-empty. Taking the room lock keeps it ordered with sends.
func (c *Coordinator) broadcastTyping(roomID, except string) {
	r, ok := c.rooms.get(roomID)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c.gateway.Deliver(r.memberIDsLocked(except), models.TypingChanged{
		RoomID: roomID,
		Users:  c.typing.Users(roomID),
	})
}
