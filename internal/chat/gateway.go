package chat

import (
	"sync"

	"roomchat/internal/metrics"
	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

// Conn is the transport handle for one live connection. Send must not
// block: implementations enqueue and return an error when the destination
// cannot keep up or is already closed.
type Conn interface {
	ID() string
	Send(ev models.Event) error
	Close()
}

// Gateway resolves delivery targets to live connections and performs the
// sends. Only bound connections are registered.
type Gateway struct {
	mu        sync.RWMutex
	conns     map[string]Conn
	onFailure func(connID string)
}

// NewGateway returns a gateway that reports failed destinations to
// onFailure. The callback runs on its own goroutine so it may take any lock.
func NewGateway(onFailure func(connID string)) *Gateway {
	return &Gateway{
		conns:     make(map[string]Conn),
		onFailure: onFailure,
	}
}

func (g *Gateway) add(conn Conn) {
	g.mu.Lock()
	g.conns[conn.ID()] = conn
	g.mu.Unlock()
}

func (g *Gateway) remove(connID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.conns[connID]; !ok {
		return false
	}
	delete(g.conns, connID)
	return true
}

func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Broadcast delivers p to every registered connection.
func (g *Gateway) Broadcast(p models.Payload) {
	g.mu.RLock()
	conns := make([]Conn, 0, len(g.conns))
	for _, conn := range g.conns {
		conns = append(conns, conn)
	}
	g.mu.RUnlock()

	g.deliver(conns, models.NewEvent(p))
}

// Deliver sends to the listed connections, skipping ids that are no longer
// registered.
func (g *Gateway) Deliver(connIDs []string, p models.Payload) {
	if len(connIDs) == 0 {
		return
	}

	g.mu.RLock()
	conns := make([]Conn, 0, len(connIDs))
	for _, id := range connIDs {
		if conn, ok := g.conns[id]; ok {
			conns = append(conns, conn)
		}
	}
	g.mu.RUnlock()

	g.deliver(conns, models.NewEvent(p))
}

func (g *Gateway) SendTo(connID string, p models.Payload) {
	g.Deliver([]string{connID}, p)
}

func (g *Gateway) deliver(conns []Conn, ev models.Event) {
	for _, conn := range conns {
		if err := conn.Send(ev); err != nil {
			g.fail(conn, ev, err)
		}
	}
}

func (g *Gateway) fail(conn Conn, ev models.Event, err error) {
	metrics.DeliveryFailures.Inc()
	logger.Warn("Delivery of %s to connection %s failed: %v", ev.Type, conn.ID(), err)

	// Only the first failure schedules cleanup.
	if g.remove(conn.ID()) && g.onFailure != nil {
		go g.onFailure(conn.ID())
	}
}
