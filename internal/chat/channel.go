package chat

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"roomchat/internal/metrics"
	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

// Send appends a message to the sender's current room and fans it out to
// every member, the sender included. roomID may be empty; when set it must
// name the current room.
func (c *Coordinator) Send(connID, roomID, body string) (models.Message, error) {
	s, err := c.lockBound(connID)
	if err != nil {
		return models.Message{}, err
	}
	defer s.mu.Unlock()

	r, err := c.currentRoomLocked(s, roomID)
	if err != nil {
		return models.Message{}, err
	}

	body, err = c.validateBody(body)
	if err != nil {
		return models.Message{}, err
	}

	r.mu.Lock()
	r.seq++
	stored := newStoredMessage(models.Message{
		ID:        ulid.Make().String(),
		Seq:       r.seq,
		RoomID:    r.info.ID,
		Sender:    s.identity,
		Body:      body,
		CreatedAt: time.Now().UTC(),
		ReadBy:    []string{s.identity.ID},
	})
	r.history.push(stored)
	msg := stored.snapshot()
	c.gateway.Deliver(r.memberIDsLocked(""), models.MessageReceived{Message: msg})
	r.mu.Unlock()

	c.archive.appendMessage(msg)
	metrics.MessagesSent.Inc()
	return msg, nil
}

// DirectMessage delivers body to every connection of the recipient and echoes
// it to the sender's own connections. Nothing is retained.
func (c *Coordinator) DirectMessage(connID, toIdentityID, body string) (models.DirectMessage, error) {
	s, err := c.lockBound(connID)
	if err != nil {
		return models.DirectMessage{}, err
	}
	defer s.mu.Unlock()

	body, err = c.validateBody(body)
	if err != nil {
		return models.DirectMessage{}, err
	}

	to, ok := c.presence.Lookup(toIdentityID)
	if !ok {
		return models.DirectMessage{}, fmt.Errorf("direct message to %q: %w", toIdentityID, ErrRecipientOffline)
	}

	dm := models.DirectMessage{
		ID:        ulid.Make().String(),
		From:      s.identity,
		To:        to,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	targets := c.presence.Connections(to.ID)
	if to.ID != s.identity.ID {
		targets = append(targets, c.presence.Connections(s.identity.ID)...)
	}
	c.gateway.Deliver(targets, models.DirectMessageReceived{Message: dm})

	metrics.DirectMessagesSent.Inc()
	logger.Debug("Direct message %s from %s to %s", dm.ID, s.identity.ID, to.ID)
	return dm, nil
}

// currentRoomLocked requires s.mu. An explicit roomID must match the
// session's room.
func (c *Coordinator) currentRoomLocked(s *session, roomID string) (*room, error) {
	if s.room == nil {
		return nil, ErrNotInRoom
	}
	if roomID != "" && roomID != s.room.info.ID {
		return nil, fmt.Errorf("room %q: %w", roomID, ErrNotInRoom)
	}
	return s.room, nil
}

func (c *Coordinator) validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if c.opts.MaxMessageLength > 0 && utf8.RuneCountInString(body) > c.opts.MaxMessageLength {
		return "", ErrBodyTooLong
	}
	return body, nil
}
