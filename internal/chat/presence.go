package chat

import (
	"sort"
	"sync"

	"roomchat/internal/metrics"
	"roomchat/internal/models"
)

// Presence maps identities to their live connections. Online/offline
// changes are broadcast globally, only on the 0→1 and 1→0 transitions.
type Presence struct {
	mu         sync.Mutex
	gateway    *Gateway
	identities map[string]*presenceEntry
	owners     map[string]string // connection id -> identity id
}

type presenceEntry struct {
	identity models.Identity
	conns    map[string]struct{}
}

func NewPresence(gateway *Gateway) *Presence {
	return &Presence{
		gateway:    gateway,
		identities: make(map[string]*presenceEntry),
		owners:     make(map[string]string),
	}
}

// Bind reports whether the identity came online with this connection.
func (p *Presence) Bind(connID string, identity models.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.owners[connID]; ok {
		return false
	}

	entry, ok := p.identities[identity.ID]
	if !ok {
		entry = &presenceEntry{identity: identity, conns: make(map[string]struct{})}
		p.identities[identity.ID] = entry
	}
	entry.conns[connID] = struct{}{}
	p.owners[connID] = identity.ID

	if len(entry.conns) != 1 {
		return false
	}

	metrics.IdentitiesOnline.Inc()
	p.gateway.Broadcast(models.PresenceChanged{Identity: entry.identity, Online: true})
	return true
}

// Unbind reports whether the identity went offline. Unknown connections are
// ignored.
func (p *Presence) Unbind(connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	identityID, ok := p.owners[connID]
	if !ok {
		return false
	}
	delete(p.owners, connID)

	entry := p.identities[identityID]
	delete(entry.conns, connID)
	if len(entry.conns) > 0 {
		return false
	}
	delete(p.identities, identityID)

	metrics.IdentitiesOnline.Dec()
	p.gateway.Broadcast(models.PresenceChanged{Identity: entry.identity, Online: false})
	return true
}

func (p *Presence) IsOnline(identityID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.identities[identityID]
	return ok
}

func (p *Presence) Lookup(identityID string) (models.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.identities[identityID]
	if !ok {
		return models.Identity{}, false
	}
	return entry.identity, true
}

func (p *Presence) Connections(identityID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.identities[identityID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(entry.conns))
	for id := range entry.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Online lists online identities ordered by display name.
func (p *Presence) Online() []models.Identity {
	p.mu.Lock()
	users := make([]models.Identity, 0, len(p.identities))
	for _, entry := range p.identities {
		users = append(users, entry.identity)
	}
	p.mu.Unlock()

	sortIdentities(users)
	return users
}

func sortIdentities(users []models.Identity) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName != users[j].DisplayName {
			return users[i].DisplayName < users[j].DisplayName
		}
		return users[i].ID < users[j].ID
	})
}
