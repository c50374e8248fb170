package chat

import "roomchat/internal/models"

// MarkRead adds the caller to a retained message's read set. Messages that
// were evicted from history are ignored without error. A receipt goes to the
// other members only the first time an identity reads a message.
func (c *Coordinator) MarkRead(connID, roomID, messageID string) error {
	s, err := c.lockBound(connID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	r, err := c.currentRoomLocked(s, roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	stored := r.history.find(messageID)
	if stored == nil || !stored.addReader(s.identity.ID) {
		r.mu.Unlock()
		return nil
	}
	c.gateway.Deliver(r.memberIDsLocked(connID), models.ReadReceipt{
		RoomID:    r.info.ID,
		MessageID: messageID,
		Identity:  s.identity,
	})
	r.mu.Unlock()

	c.archive.markRead(r.info.ID, messageID, s.identity.ID)
	return nil
}

// ReadBy returns the identities that have read a retained message.
func (c *Coordinator) ReadBy(roomID, messageID string) ([]string, bool) {
	r, ok := c.rooms.get(roomID)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.history.find(messageID)
	if stored == nil {
		return nil, false
	}
	return stored.snapshot().ReadBy, true
}
