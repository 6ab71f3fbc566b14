// Package changefeed carries "collection X changed" notifications from the
// process that wrote a document to every live query watching that
// collection, in this process or another one sharing the same database.
package changefeed

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Feed publishes and delivers collection-change notifications.
//
// Notifications carry no payload beyond the collection name: a receiver
// re-reads the collection, so a lost or duplicated notification costs at
// most one extra query.
type Feed interface {
	Publish(ctx context.Context, collection string) error

	// Subscribe calls fn for every notification until ctx is cancelled.
	// It returns once the subscription is established.
	Subscribe(ctx context.Context, fn func(collection string)) error
}

// Local is an in-process Feed, used when no Redis is configured.
type Local struct {
	mu        sync.RWMutex
	listeners map[int]func(string)
	next      int
	logger    *slog.Logger
}

var _ Feed = (*Local)(nil)

// NewLocal creates an empty in-process feed.
func NewLocal(logger *slog.Logger) *Local {
	return &Local{listeners: make(map[int]func(string)), logger: logger}
}

// Publish calls every listener synchronously.
func (l *Local) Publish(_ context.Context, collection string) error {
	l.mu.RLock()
	fns := make([]func(string), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		deliver(l.logger, fn, collection)
	}
	return nil
}

func (l *Local) Subscribe(ctx context.Context, fn func(collection string)) error {
	l.mu.Lock()
	id := l.next
	l.next++
	l.listeners[id] = fn
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}()
	return nil
}

// deliver runs one listener call, keeping a panicking listener from taking
// the publisher down with it.
func deliver(logger *slog.Logger, fn func(string), collection string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("changefeed listener panicked",
				slog.String("collection", collection),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn(collection)
}
