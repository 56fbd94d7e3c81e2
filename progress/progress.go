// Package progress delivers human-readable status updates for a chat session
// while an invocation runs. Delivery is best-effort: Notify never returns an
// error and never blocks the caller on a slow consumer.
package progress

import (
	"context"
	"time"

	"github.com/smallnest/lexgraph/log"
)

// Emitter posts a status line for a session.
type Emitter interface {
	Notify(ctx context.Context, sessionID, text string)
}

// Event is the wire form of a status update.
type Event struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Time      time.Time `json:"time"`
}

// Func adapts a function to Emitter.
type Func func(ctx context.Context, sessionID, text string)

// Notify implements Emitter.
func (f Func) Notify(ctx context.Context, sessionID, text string) {
	f(ctx, sessionID, text)
}

// NoOp discards every update.
type NoOp struct{}

// Notify implements Emitter.
func (NoOp) Notify(context.Context, string, string) {}

// Log writes updates to a logger at info level.
type Log struct {
	Logger log.Logger
}

// Notify implements Emitter.
func (l Log) Notify(ctx context.Context, sessionID, text string) {
	log.OrDefault(l.Logger).Info("progress [%s]: %s", sessionID, text)
}

// Multi fans an update out to every emitter in order. A panicking emitter
// does not stop the others.
type Multi []Emitter

// Notify implements Emitter.
func (m Multi) Notify(ctx context.Context, sessionID, text string) {
	for _, e := range m {
		safeNotify(e, ctx, sessionID, text)
	}
}

// Safe wraps e so that a panicking Notify is logged instead of propagated.
func Safe(e Emitter) Emitter {
	if e == nil {
		return NoOp{}
	}
	if _, ok := e.(safe); ok {
		return e
	}
	return safe{e}
}

type safe struct{ next Emitter }

func (s safe) Notify(ctx context.Context, sessionID, text string) {
	safeNotify(s.next, ctx, sessionID, text)
}

func safeNotify(e Emitter, ctx context.Context, sessionID, text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("progress: emitter panicked: %v", r)
		}
	}()
	e.Notify(ctx, sessionID, text)
}
