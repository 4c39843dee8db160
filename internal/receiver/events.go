package receiver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/roomcall/internal/notify"
	"github.com/foxseedlab/roomcall/internal/repository"
)

const (
	eventQueueSize    = 256
	sideEffectTimeout = 5 * time.Second
)

// eventQueue runs history writes and notifications in submission order off
// the caller's goroutine.
type eventQueue struct {
	mu     sync.Mutex
	tasks  chan func()
	closed bool
	done   chan struct{}
}

func newEventQueue(size int) *eventQueue {
	q := &eventQueue{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.tasks <- fn:
	default:
		slog.Warn("event queue full; dropping pipeline event")
	}
}

func (q *eventQueue) run() {
	defer close(q.done)
	for fn := range q.tasks {
		fn()
	}
}

// close drains pending tasks and waits for them.
func (q *eventQueue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	<-q.done
}

func (p *Pipeline) recordStarted(id string, kind repository.ReceptionKind, roomID *int, port int) {
	input := repository.StartReceptionInput{
		ID:        id,
		Kind:      kind,
		RoomID:    roomID,
		Port:      port,
		StartedAt: time.Now(),
	}
	p.runAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := p.history.StartReception(ctx, input); err != nil {
			slog.Error("failed to record reception start", "error", err, "session_id", id, "kind", kind)
		}
	})
}

func (p *Pipeline) recordSender(id string, ssrc uint32) {
	p.runAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := p.history.RecordSender(ctx, repository.RecordSenderInput{ReceptionID: id, SSRC: ssrc}); err != nil {
			slog.Error("failed to record reception sender", "error", err, "session_id", id, "ssrc", ssrc)
		}
	})
}

func (p *Pipeline) recordEnded(id string) {
	endedAt := time.Now()
	p.runAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := p.history.EndReception(ctx, repository.EndReceptionInput{ReceptionID: id, EndedAt: endedAt}); err != nil {
			slog.Error("failed to record reception end", "error", err, "session_id", id)
		}
	})
}

func (p *Pipeline) publish(event notify.Event) {
	event.OccurredAt = time.Now()
	p.runAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := p.events.Notify(ctx, event); err != nil {
			slog.Error("failed to publish pipeline event", "error", err, "type", event.Type, "session_id", event.SessionID)
		}
	})
}
