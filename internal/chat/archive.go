package chat

import (
	"context"
	"sync"
	"time"

	"roomchat/internal/metrics"
	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

// Archive is the persistence collaborator. The coordinator only reads from
// it during Restore; every write goes through the archiver queue.
type Archive interface {
	SaveRoom(ctx context.Context, room models.RoomInfo) error
	ListRooms(ctx context.Context) ([]models.RoomInfo, error)
	AppendMessage(ctx context.Context, msg models.Message) error
	MarkRead(ctx context.Context, roomID, messageID, identityID string) error
	LoadRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

const archiveJobTimeout = 5 * time.Second

type archiveJob struct {
	op  string
	run func(ctx context.Context) error
}

// archiver runs persistence writes on a single worker so they are applied
// in submission order and never block fan-out. A full queue drops the job.
type archiver struct {
	store Archive
	jobs  chan archiveJob
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newArchiver(store Archive, queue int) *archiver {
	if store == nil {
		return nil
	}
	if queue < 1 {
		queue = 1
	}
	a := &archiver{
		store: store,
		jobs:  make(chan archiveJob, queue),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *archiver) run() {
	defer close(a.done)

	for job := range a.jobs {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), archiveJobTimeout)
		err := job.run(ctx)
		cancel()
		metrics.ArchiveLatency.Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.ArchiveErrors.WithLabelValues(job.op).Inc()
			logger.Error("Archive %s failed: %v", job.op, err)
		}
	}
}

func (a *archiver) submit(op string, run func(ctx context.Context) error) {
	if a == nil {
		return
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return
	}

	select {
	case a.jobs <- archiveJob{op: op, run: run}:
	default:
		metrics.ArchiveDropped.Inc()
		logger.Warn("Archive queue full, dropping %s", op)
	}
}

func (a *archiver) saveRoom(info models.RoomInfo) {
	a.submit("save_room", func(ctx context.Context) error {
		return a.store.SaveRoom(ctx, info)
	})
}

func (a *archiver) appendMessage(msg models.Message) {
	a.submit("append_message", func(ctx context.Context) error {
		return a.store.AppendMessage(ctx, msg)
	})
}

func (a *archiver) markRead(roomID, messageID, identityID string) {
	a.submit("mark_read", func(ctx context.Context) error {
		return a.store.MarkRead(ctx, roomID, messageID, identityID)
	})
}

// stop refuses new jobs and waits for queued ones to drain.
func (a *archiver) stop(ctx context.Context) error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
