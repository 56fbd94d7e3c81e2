package progress

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the Async queue capacity when none is given.
const DefaultQueueSize = 256

type queued struct {
	ctx       context.Context
	sessionID string
	text      string
}

// Async decouples callers from a slow emitter. Updates go through a bounded
// queue drained by one goroutine; when the queue is full the update is
// dropped and counted.
type Async struct {
	next    Emitter
	onDrop  func()
	queue   chan queued
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// AsyncOptions configures NewAsync.
type AsyncOptions struct {
	// QueueSize is the queue capacity. Zero means DefaultQueueSize.
	QueueSize int
	// OnDrop is called for every dropped update.
	OnDrop func()
}

// NewAsync starts the delivery goroutine. Call Close to stop it.
func NewAsync(next Emitter, opts AsyncOptions) *Async {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	a := &Async{
		next:   next,
		onDrop: opts.OnDrop,
		queue:  make(chan queued, opts.QueueSize),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify implements Emitter. It never blocks.
func (a *Async) Notify(ctx context.Context, sessionID, text string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop()
		return
	}
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), sessionID: sessionID, text: text}:
	default:
		a.drop()
	}
}

func (a *Async) drop() {
	a.dropped.Add(1)
	if a.onDrop != nil {
		a.onDrop()
	}
}

// Dropped returns the number of updates dropped so far.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting updates and waits for queued ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		safeNotify(a.next, q.ctx, q.sessionID, q.text)
	}
}
