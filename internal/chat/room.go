package chat

import (
	"sync"

	"roomchat/internal/models"
)

// room guards membership, history and the message sequence with one mutex.
// join, leave and send on the same room serialize here; different rooms
// never contend.
type room struct {
	info models.RoomInfo

	mu      sync.Mutex
	members map[string]models.Identity // connection id -> identity
	history *history
	seq     uint64
}

func newRoom(info models.RoomInfo, historyCap int) *room {
	return &room{
		info:    info,
		members: make(map[string]models.Identity),
		history: newHistory(historyCap),
	}
}

func (r *room) summaryLocked() models.RoomSummary {
	return models.RoomSummary{
		ID:          r.info.ID,
		Name:        r.info.Name,
		Description: r.info.Description,
		MemberCount: len(r.members),
	}
}

func (r *room) summary() models.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaryLocked()
}

func (r *room) memberIDsLocked(except string) []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != except {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *room) hasIdentityLocked(identityID string) bool {
	for _, identity := range r.members {
		if identity.ID == identityID {
			return true
		}
	}
	return false
}

// storedMessage is the room-owned copy of a message. readers mirrors
// msg.ReadBy for constant-time membership checks.
type storedMessage struct {
	msg     models.Message
	readers map[string]struct{}
}

func newStoredMessage(msg models.Message) *storedMessage {
	m := &storedMessage{
		msg:     msg,
		readers: make(map[string]struct{}, len(msg.ReadBy)),
	}
	m.msg.ReadBy = nil
	for _, id := range msg.ReadBy {
		m.addReader(id)
	}
	return m
}

func (m *storedMessage) addReader(identityID string) bool {
	if _, ok := m.readers[identityID]; ok {
		return false
	}
	m.readers[identityID] = struct{}{}
	m.msg.ReadBy = append(m.msg.ReadBy, identityID)
	return true
}

func (m *storedMessage) snapshot() models.Message {
	msg := m.msg
	msg.ReadBy = append([]string(nil), m.msg.ReadBy...)
	return msg
}

// history is a fixed-capacity ring; pushing into a full ring evicts the
// oldest message.
type history struct {
	buf   []*storedMessage
	start int
	size  int
	index map[string]*storedMessage
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = 1
	}
	return &history{
		buf:   make([]*storedMessage, capacity),
		index: make(map[string]*storedMessage, capacity),
	}
}

func (h *history) push(m *storedMessage) *storedMessage {
	var evicted *storedMessage
	if h.size == len(h.buf) {
		evicted = h.buf[h.start]
		delete(h.index, evicted.msg.ID)
		h.buf[h.start] = m
		h.start = (h.start + 1) % len(h.buf)
	} else {
		h.buf[(h.start+h.size)%len(h.buf)] = m
		h.size++
	}
	h.index[m.msg.ID] = m
	return evicted
}

func (h *history) find(messageID string) *storedMessage {
	return h.index[messageID]
}

func (h *history) len() int {
	return h.size
}

// snapshot copies the retained messages, oldest first.
func (h *history) snapshot() []models.Message {
	out := make([]models.Message, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)].snapshot())
	}
	return out
}
