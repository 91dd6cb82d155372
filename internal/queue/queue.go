// Package queue provides the single-worker event loop that serializes every
// mutation of a UI session's application state, including delayed callbacks.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventStatus represents the state of a posted event
type EventStatus string

// Event status constants define the lifecycle states
const (
	StatusQueued     EventStatus = "queued"
	StatusProcessing EventStatus = "processing"
	StatusCompleted  EventStatus = "completed"
	StatusFailed     EventStatus = "failed"
)

var (
	// ErrQueueFull is returned when the event buffer is exhausted.
	ErrQueueFull = errors.New("queue is full")
	// ErrStopped is returned once the loop has been shut down.
	ErrStopped = errors.New("loop stopped")
)

// DefaultCapacity is the event buffer size used by NewLoop when capacity <= 0.
const DefaultCapacity = 256

// Event is one unit of work run on the loop
type Event struct {
	ID       string
	Name     string
	QueuedAt time.Time
	fn       func()
	done     chan struct{}
}

// Loop runs posted events one at a time, in order, on a single goroutine
type Loop struct {
	name    string
	mu      sync.Mutex
	pending chan *Event
	stats   map[EventStatus]int
	timers  map[*time.Timer]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewLoop creates and starts a loop
func NewLoop(name string, capacity int) *Loop {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		name:    name,
		pending: make(chan *Event, capacity),
		stats:   make(map[EventStatus]int),
		timers:  make(map[*time.Timer]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	l.wg.Add(1)
	go l.worker()

	return l
}

// Post adds an event to the loop without waiting for it to run
func (l *Loop) Post(name string, fn func()) (string, error) {
	ev, err := l.enqueue(name, fn)
	if err != nil {
		return "", err
	}
	return ev.ID, nil
}

// Call posts fn and blocks until it has run or ctx is done. It must not be
// called from inside an event on the same loop.
func (l *Loop) Call(ctx context.Context, name string, fn func()) error {
	ev, err := l.enqueue(name, fn)
	if err != nil {
		return err
	}

	select {
	case <-ev.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", name, ctx.Err())
	case <-l.ctx.Done():
		return ErrStopped
	}
}

// After posts fn onto the loop once d has elapsed. Timers still pending at
// shutdown are stopped.
func (l *Loop) After(d time.Duration, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, timer)
		l.mu.Unlock()

		if _, err := l.Post("timer", fn); err != nil && !errors.Is(err, ErrStopped) {
			log.Warn().Err(err).Str("loop", l.name).Msg("Dropping delayed event")
		}
	})
	l.timers[timer] = struct{}{}
}

// Stats returns loop statistics
func (l *Loop) Stats() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]int{
		"total":      l.stats[StatusQueued] + l.stats[StatusProcessing] + l.stats[StatusCompleted] + l.stats[StatusFailed],
		"queued":     l.stats[StatusQueued],
		"processing": l.stats[StatusProcessing],
		"completed":  l.stats[StatusCompleted],
		"failed":     l.stats[StatusFailed],
		"timers":     len(l.timers),
	}
}

func (l *Loop) enqueue(name string, fn func()) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx.Err() != nil {
		return nil, ErrStopped
	}

	ev := &Event{
		ID:       uuid.New().String(),
		Name:     name,
		QueuedAt: time.Now().UTC(),
		fn:       fn,
		done:     make(chan struct{}),
	}

	// Add to pending queue (non-blocking)
	select {
	case l.pending <- ev:
		l.stats[StatusQueued]++
		return ev, nil
	default:
		l.stats[StatusFailed]++
		return nil, ErrQueueFull
	}
}

func (l *Loop) worker() {
	defer l.wg.Done()

	for {
		select {
		case <-l.ctx.Done():
			return
		case ev := <-l.pending:
			l.process(ev)
		}
	}
}

// process runs a single event; a panicking event is logged and counted as
// failed without stopping the loop
func (l *Loop) process(ev *Event) {
	l.move(StatusQueued, StatusProcessing)
	status := StatusCompleted

	func() {
		defer func() {
			if r := recover(); r != nil {
				status = StatusFailed
				log.Error().
					Str("loop", l.name).
					Str("event_id", ev.ID).
					Str("event", ev.Name).
					Interface("panic", r).
					Msg("Event panicked")
			}
		}()
		ev.fn()
	}()

	l.move(StatusProcessing, status)
	close(ev.done)
}

func (l *Loop) move(from, to EventStatus) {
	l.mu.Lock()
	l.stats[from]--
	l.stats[to]++
	l.mu.Unlock()
}

// Shutdown stops accepting events, cancels pending timers and waits for the
// running event to finish
func (l *Loop) Shutdown(timeout time.Duration) error {
	l.mu.Lock()
	l.cancel()
	for t := range l.timers {
		t.Stop()
	}
	l.timers = make(map[*time.Timer]struct{})
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
