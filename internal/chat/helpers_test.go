package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomchat/internal/models"
)

// clock orders events across every fakeConn in a test binary.
var clock atomic.Uint64

type recorded struct {
	seq uint64
	ev  models.Event
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []recorded
	fail   bool
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(ev models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail || f.closed {
		return errors.New("send buffer full")
	}
	f.events = append(f.events, recorded{seq: clock.Add(1), ev: ev})
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}

func (f *fakeConn) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.events...)
}

// payloads returns every payload of type T received so far, in order.
func payloads[T models.Payload](f *fakeConn) []T {
	var out []T
	for _, r := range f.all() {
		if p, ok := r.ev.Payload.(T); ok {
			out = append(out, p)
		}
	}
	return out
}

// seqOf returns the clock value of the first payload of type T matching fn.
func seqOf[T models.Payload](f *fakeConn, fn func(T) bool) (uint64, bool) {
	for _, r := range f.all() {
		if p, ok := r.ev.Payload.(T); ok && fn(p) {
			return r.seq, true
		}
	}
	return 0, false
}

// staticVerifier accepts tokens of the form "id:Display Name".
type staticVerifier struct {
	delay time.Duration
}

func (v staticVerifier) Verify(ctx context.Context, credential string) (models.Identity, error) {
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return models.Identity{}, ctx.Err()
		}
	}
	id, name, ok := strings.Cut(credential, ":")
	if !ok || id == "" {
		return models.Identity{}, errors.New("bad credential")
	}
	return models.Identity{ID: id, DisplayName: name}, nil
}

func newTestCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	c := New(staticVerifier{}, nil, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

// connect admits and binds a fresh connection.
func connect(t *testing.T, c *Coordinator, connID, credential string) *fakeConn {
	t.Helper()
	conn := newFakeConn(connID)
	c.Connect(conn)
	_, err := c.Bind(context.Background(), connID, credential)
	require.NoError(t, err)
	return conn
}

func mustCreate(t *testing.T, c *Coordinator, name string) string {
	t.Helper()
	summary, err := c.CreateRoom(name, "")
	require.NoError(t, err)
	return summary.ID
}

func bodies(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}
