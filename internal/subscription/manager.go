// Package subscription owns the live queries of one view.
//
// A view (one WebSocket connection, one page) asks for data by key. The
// Manager guarantees that each key has at most one live subscription, that
// snapshots reach the view in order with older ones dropped, and that
// closing the view releases everything it held.
//
// DELIVERY MODEL:
// Store callbacks never call into the view directly. Each Handle has a
// one-slot mailbox and its own delivery goroutine. A snapshot arriving
// while an older one is still waiting replaces it, so a slow view sees the
// latest state rather than a backlog, and the store goroutine never blocks
// on the view.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/metrics"
	"github.com/sakif/college-forum/internal/repository"
)

// ErrClosed is returned by Acquire after the Manager has been closed.
var ErrClosed = errors.New("subscription: manager closed")

// SubscribeFunc establishes a live query; repository Subscribe methods
// fit it once their query argument is bound.
type SubscribeFunc[T any] func(
	onChange func(repository.Snapshot[T]),
	onError func(error),
) (repository.Unsubscribe, error)

// Manager holds the live subscriptions of a single view.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// NewManager creates a Manager scoped to ctx. Cancelling ctx has the same
// effect as Close.
func NewManager(ctx context.Context, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
	go func() {
		<-ctx.Done()
		m.releaseAll()
	}()
	return m
}

// Acquire starts a live subscription under key. A subscription already
// held under the same key is released first, so a view that re-renders
// with the same key never stacks listeners.
//
// onChange and onError run on the handle's delivery goroutine, one at a
// time. Establishment failures come back as apperror.Transient (or the
// store's validation error) and leave nothing registered.
func Acquire[T any](
	m *Manager,
	key string,
	subscribe SubscribeFunc[T],
	onChange func(repository.Snapshot[T]),
	onError func(error),
) (*Handle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	old := m.handles[key]
	delete(m.handles, key)
	m.mu.Unlock()
	if old != nil {
		old.release()
	}

	h := newHandle(key)
	box := newMailbox[T]()

	unsubscribe, err := subscribe(
		func(s repository.Snapshot[T]) {
			if !h.Live() {
				metrics.SnapshotsDropped.WithLabelValues("released").Inc()
				return
			}
			box.put(s)
		},
		func(err error) {
			if h.Live() {
				box.putErr(err)
			}
		},
	)
	if err != nil {
		h.live.Store(false)
		close(h.done)
		return nil, establishError(key, err)
	}
	h.unsubscribe = unsubscribe
	metrics.ActiveSubscriptions.Inc()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		h.release()
		return nil, ErrClosed
	}
	// A concurrent Acquire for the same key may have registered first.
	prev := m.handles[key]
	m.handles[key] = h
	m.mu.Unlock()
	if prev != nil {
		prev.release()
	}

	m.logger.Debug("subscription acquired", slog.String("key", key))
	go deliver(h, box, onChange, onError)
	return h, nil
}

func establishError(key string, err error) error {
	if errors.Is(err, apperror.ErrTransient) || errors.Is(err, apperror.ErrValidation) {
		return err
	}
	return apperror.Transient("subscribing to "+key, err)
}

// Get returns the live handle held under key, if any.
func (m *Manager) Get(key string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[key]
	return h, ok
}

// Len is the number of live subscriptions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// Release stops the handle's subscription and waits for a callback that
// is already running to return, so nothing reaches the view afterwards.
// It is idempotent. From inside the handle's own callbacks use
// ReleaseFromCallback instead; Release would wait on itself.
func (m *Manager) Release(h *Handle) {
	if m.forget(h) {
		h.release()
	}
}

// ReleaseFromCallback stops the handle's subscription without waiting for
// the callback that is calling it. No later callback starts.
func (m *Manager) ReleaseFromCallback(h *Handle) {
	if m.forget(h) {
		h.stop()
	}
}

func (m *Manager) forget(h *Handle) bool {
	if h == nil {
		return false
	}
	m.mu.Lock()
	if cur, ok := m.handles[h.key]; ok && cur == h {
		delete(m.handles, h.key)
	}
	m.mu.Unlock()
	return true
}

// ReleaseKey releases whatever is held under key.
func (m *Manager) ReleaseKey(key string) {
	m.mu.Lock()
	h, ok := m.handles[key]
	if ok {
		delete(m.handles, key)
	}
	m.mu.Unlock()
	if ok {
		h.release()
	}
}

// Close releases every subscription. Later Acquire calls fail with
// ErrClosed.
func (m *Manager) Close() {
	m.cancel()
	m.releaseAll()
}

func (m *Manager) releaseAll() {
	m.mu.Lock()
	m.closed = true
	handles := m.handles
	m.handles = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		h.release()
	}
	if len(handles) > 0 {
		m.logger.Debug("released all subscriptions", slog.Int("count", len(handles)))
	}
}

func (m *Manager) String() string {
	return fmt.Sprintf("subscription.Manager(%d live)", m.Len())
}
