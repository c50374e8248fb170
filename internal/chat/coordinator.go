// Package chat is the session, room and presence coordinator. It tracks
// connected clients, room membership, bounded history, typing state and read
// receipts, and fans events out to the right connections in order.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"roomchat/internal/metrics"
	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

// Verifier resolves a credential to an identity. It is the only call on the
// hot path allowed to block, and it runs without any coordinator lock held.
type Verifier interface {
	Verify(ctx context.Context, credential string) (models.Identity, error)
}

type Options struct {
	HistoryCap       int
	TypingTimeout    time.Duration
	VerifyTimeout    time.Duration
	MaxMessageLength int
	ArchiveQueue     int
}

func (o Options) withDefaults() Options {
	if o.HistoryCap <= 0 {
		o.HistoryCap = 100
	}
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = 3 * time.Second
	}
	if o.VerifyTimeout <= 0 {
		o.VerifyTimeout = 5 * time.Second
	}
	if o.ArchiveQueue <= 0 {
		o.ArchiveQueue = 1024
	}
	return o
}

// Coordinator owns all shared chat state. Lock order is session → room →
// gateway, and presence → gateway; the typing tracker's lock is only ever
// taken last.
type Coordinator struct {
	opts     Options
	verifier Verifier
	store    Archive
	archive  *archiver

	gateway  *Gateway
	presence *Presence
	rooms    *Directory
	typing   *TypingTracker

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	conn     Conn
	identity models.Identity
	bound    bool
	closed   bool
	room     *room
}

// New builds a coordinator. store may be nil, in which case nothing is
// persisted.
func New(verifier Verifier, store Archive, opts Options) *Coordinator {
	opts = opts.withDefaults()

	c := &Coordinator{
		opts:     opts,
		verifier: verifier,
		store:    store,
		archive:  newArchiver(store, opts.ArchiveQueue),
		rooms:    NewDirectory(opts.HistoryCap),
		sessions: make(map[string]*session),
	}
	c.gateway = NewGateway(c.Disconnect)
	c.presence = NewPresence(c.gateway)
	c.typing = NewTypingTracker(opts.TypingTimeout, func(roomID string) {
		c.broadcastTyping(roomID, "")
	})
	return c
}

// Connect admits a transport connection. It stays unbound, and can do
// nothing but authenticate, until Bind succeeds.
func (c *Coordinator) Connect(conn Conn) {
	c.mu.Lock()
	_, exists := c.sessions[conn.ID()]
	c.mu.Unlock()

	if exists {
		logger.Warn("Connection %s registered twice, dropping the old session", conn.ID())
		c.Disconnect(conn.ID())
	}

	c.mu.Lock()
	c.sessions[conn.ID()] = &session{conn: conn}
	c.mu.Unlock()
}

// Bind verifies credential and attaches the resulting identity to the
// connection for its lifetime.
func (c *Coordinator) Bind(ctx context.Context, connID, credential string) (models.Identity, error) {
	s := c.lookup(connID)
	if s == nil {
		return models.Identity{}, ErrNotBound
	}

	s.mu.Lock()
	bound := s.bound
	s.mu.Unlock()
	if bound {
		return models.Identity{}, ErrAlreadyBound
	}

	identity, err := c.verify(ctx, credential)
	if err != nil {
		metrics.BindFailures.Inc()
		logger.Debug("Connection %s failed authentication: %v", connID, err)
		return models.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if err := c.attach(s, identity); err != nil {
		return models.Identity{}, err
	}
	return identity, nil
}

// BindIdentity attaches an identity the caller has already verified, such as
// one taken from the token on the upgrade request.
func (c *Coordinator) BindIdentity(connID string, identity models.Identity) error {
	s := c.lookup(connID)
	if s == nil {
		return ErrNotBound
	}
	if identity.ID == "" {
		metrics.BindFailures.Inc()
		return fmt.Errorf("%w: empty identity", ErrUnauthenticated)
	}
	return c.attach(s, identity)
}

func (c *Coordinator) attach(s *session, identity models.Identity) error {
	connID := s.conn.ID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotBound
	}
	if s.bound {
		return ErrAlreadyBound
	}

	s.identity = identity
	s.bound = true
	c.gateway.add(s.conn)
	c.presence.Bind(connID, identity)
	metrics.ConnectionsActive.Inc()

	c.gateway.SendTo(connID, models.SessionReady{
		Identity: identity,
		Rooms:    c.rooms.List(),
		Online:   c.presence.Online(),
	})

	logger.Info("Connection %s bound to %s (%s)", connID, identity.DisplayName, identity.ID)
	return nil
}

// verify enforces VerifyTimeout even against verifiers that ignore ctx.
func (c *Coordinator) verify(ctx context.Context, credential string) (models.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.VerifyTimeout)
	defer cancel()

	type result struct {
		identity models.Identity
		err      error
	}
	done := make(chan result, 1)
	go func() {
		identity, err := c.verifier.Verify(ctx, credential)
		done <- result{identity, err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.identity.ID == "" {
			r.err = fmt.Errorf("verifier returned an empty identity")
		}
		return r.identity, r.err
	case <-ctx.Done():
		return models.Identity{}, ctx.Err()
	}
}

// Disconnect tears down everything the connection holds. Safe to call more
// than once and for connections that never bound.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	s, ok := c.sessions[connID]
	delete(c.sessions, connID)
	c.mu.Unlock()

	if !ok {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	if s.room != nil {
		c.leaveLocked(connID, s)
	}
	c.gateway.remove(connID)
	if s.bound {
		c.presence.Unbind(connID)
		metrics.ConnectionsActive.Dec()
		logger.Info("Connection %s of %s disconnected", connID, s.identity.DisplayName)
	}
	s.mu.Unlock()

	s.conn.Close()
}

// Shutdown disconnects every session and drains pending archive writes.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.Disconnect(id)
	}
	c.typing.Close()

	return c.archive.stop(ctx)
}

func (c *Coordinator) lookup(connID string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[connID]
}

// lockBound returns the connection's session locked, or ErrNotBound.
func (c *Coordinator) lockBound(connID string) (*session, error) {
	s := c.lookup(connID)
	if s == nil {
		return nil, ErrNotBound
	}

	s.mu.Lock()
	if s.closed || !s.bound {
		s.mu.Unlock()
		return nil, ErrNotBound
	}
	return s, nil
}

func (c *Coordinator) requireBound(connID string) error {
	s, err := c.lockBound(connID)
	if err != nil {
		return err
	}
	s.mu.Unlock()
	return nil
}

// CreateRoom registers a room under the id derived from name and announces
// it to every connection.
func (c *Coordinator) CreateRoom(name, description string) (models.RoomSummary, error) {
	id := NormalizeRoomID(name)
	if id == "" {
		return models.RoomSummary{}, ErrInvalidRoomName
	}

	info := models.RoomInfo{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}

	c.rooms.mu.Lock()
	r, err := c.rooms.addLocked(info)
	if err != nil {
		c.rooms.mu.Unlock()
		return models.RoomSummary{}, fmt.Errorf("create room %q: %w", id, err)
	}
	summary := r.summary()
	// Announced under the directory lock so no room_updated for this room
	// can overtake it.
	c.gateway.Broadcast(models.RoomCreated{Room: summary})
	c.rooms.mu.Unlock()

	c.archive.saveRoom(info)
	logger.Info("New room created: %s (%s)", info.Name, info.ID)
	return summary, nil
}

// Join moves the connection into roomID, leaving its current room first.
// History is replayed to the joining connection only.
func (c *Coordinator) Join(connID, roomID string) error {
	s, err := c.lockBound(connID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	target, ok := c.rooms.get(roomID)
	if !ok {
		return fmt.Errorf("join %q: %w", roomID, ErrRoomNotFound)
	}

	if s.room != nil && s.room != target {
		c.leaveLocked(connID, s)
	}

	target.mu.Lock()
	_, already := target.members[connID]
	target.members[connID] = s.identity

	c.gateway.SendTo(connID, models.RoomHistory{RoomID: target.info.ID, Messages: target.history.snapshot()})
	if !already {
		c.gateway.Deliver(target.memberIDsLocked(connID), models.MemberJoined{RoomID: target.info.ID, Identity: s.identity})
		c.gateway.Broadcast(models.RoomUpdated{RoomID: target.info.ID, MemberCount: len(target.members)})
	}
	target.mu.Unlock()

	s.room = target
	if !already {
		logger.Info("User %s joined room %s", s.identity.DisplayName, target.info.ID)
	}
	return nil
}

// Leave drops the connection's current membership, if any.
func (c *Coordinator) Leave(connID string) error {
	s, err := c.lockBound(connID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if s.room != nil {
		c.leaveLocked(connID, s)
	}
	return nil
}

// leaveLocked requires s.mu and a current room. Every leave-side event is
// enqueued before it returns, so a following join's events come after.
func (c *Coordinator) leaveLocked(connID string, s *session) {
	r := s.room

	r.mu.Lock()
	delete(r.members, connID)
	c.gateway.Deliver(r.memberIDsLocked(""), models.MemberLeft{RoomID: r.info.ID, Identity: s.identity})
	c.gateway.Broadcast(models.RoomUpdated{RoomID: r.info.ID, MemberCount: len(r.members)})
	stillPresent := r.hasIdentityLocked(s.identity.ID)
	r.mu.Unlock()

	s.room = nil
	logger.Info("User %s left room %s", s.identity.DisplayName, r.info.ID)

	// Typing state is per identity; another connection of the same identity
	// may still be in the room.
	if !stillPresent && c.typing.Stop(r.info.ID, s.identity.ID) {
		c.broadcastTyping(r.info.ID, "")
	}
}

// Restore loads persisted rooms with their recent history and creates any
// seed room that does not exist yet. Seeds only need Name and Description.
func (c *Coordinator) Restore(ctx context.Context, seeds []models.RoomInfo) error {
	var infos []models.RoomInfo
	if c.store != nil {
		stored, err := c.store.ListRooms(ctx)
		if err != nil {
			return fmt.Errorf("list rooms: %w", err)
		}
		infos = stored
	}

	known := make(map[string]bool, len(infos))
	for _, info := range infos {
		known[info.ID] = true
	}

	var fresh []models.RoomInfo
	for _, seed := range seeds {
		seed.ID = NormalizeRoomID(seed.Name)
		if seed.ID == "" || known[seed.ID] {
			continue
		}
		seed.Name = strings.TrimSpace(seed.Name)
		if seed.CreatedAt.IsZero() {
			seed.CreatedAt = time.Now().UTC()
		}
		known[seed.ID] = true
		fresh = append(fresh, seed)
	}

	for _, info := range append(infos, fresh...) {
		c.rooms.mu.Lock()
		r, err := c.rooms.addLocked(info)
		c.rooms.mu.Unlock()
		if err != nil {
			continue
		}

		if c.store == nil {
			continue
		}

		msgs, err := c.store.LoadRecentMessages(ctx, info.ID, c.opts.HistoryCap)
		if err != nil {
			// Without the stored tail the next seq is unknown.
			return fmt.Errorf("load recent messages for %s: %w", info.ID, err)
		}

		r.mu.Lock()
		for _, msg := range msgs {
			r.history.push(newStoredMessage(msg))
			if msg.Seq > r.seq {
				r.seq = msg.Seq
			}
		}
		r.mu.Unlock()
	}

	for _, info := range fresh {
		c.archive.saveRoom(info)
	}

	logger.Info("Restored %d rooms (%d seeded)", len(infos)+len(fresh), len(fresh))
	return nil
}

func (c *Coordinator) ListRooms() []models.RoomSummary {
	return c.rooms.List()
}

// History returns the retained messages of roomID, oldest first.
func (c *Coordinator) History(roomID string) ([]models.Message, error) {
	r, ok := c.rooms.get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.snapshot(), nil
}

func (c *Coordinator) OnlineUsers() []models.Identity {
	return c.presence.Online()
}

func (c *Coordinator) IsOnline(identityID string) bool {
	return c.presence.IsOnline(identityID)
}

func (c *Coordinator) TypingUsers(roomID string) []models.Identity {
	return c.typing.Users(roomID)
}

// CurrentRoom reports the room the connection is in, if any.
func (c *Coordinator) CurrentRoom(connID string) (string, bool) {
	s := c.lookup(connID)
	if s == nil {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return "", false
	}
	return s.room.info.ID, true
}

// Connections reports how many bound connections are live.
func (c *Coordinator) Connections() int {
	return c.gateway.Len()
}
