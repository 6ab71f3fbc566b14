package subscription

import (
	"sync"
	"sync/atomic"

	"github.com/sakif/college-forum/internal/metrics"
	"github.com/sakif/college-forum/internal/repository"
)

// Handle is one live subscription held by a Manager.
type Handle struct {
	key         string
	unsubscribe repository.Unsubscribe

	live        atomic.Bool
	releaseOnce sync.Once
	done        chan struct{}

	// mu is held for the duration of each callback.
	mu sync.Mutex

	errMu   sync.Mutex
	lastErr error
}

func newHandle(key string) *Handle {
	h := &Handle{key: key, done: make(chan struct{})}
	h.live.Store(true)
	return h
}

func (h *Handle) Key() string { return h.key }

// Live reports whether the handle has not been released.
func (h *Handle) Live() bool { return h.live.Load() }

// Err is the last error reported by the store for this subscription. A
// non-nil Err means the view is showing a failed state, which is distinct
// from an empty result.
func (h *Handle) Err() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	return h.lastErr
}

func (h *Handle) setErr(err error) {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	h.lastErr = err
}

// release stops the subscription. Once it returns, no callback for this
// handle is running and none will start.
func (h *Handle) release() {
	h.stop()
	h.waitIdle()
}

// stop ends delivery without waiting for a callback in flight. It is the
// only form of release that is safe from inside the handle's callback.
func (h *Handle) stop() {
	h.releaseOnce.Do(func() {
		h.live.Store(false)
		if h.unsubscribe != nil {
			h.unsubscribe()
		}
		close(h.done)
		metrics.ActiveSubscriptions.Dec()
	})
}

// waitIdle blocks until no callback holds mu.
func (h *Handle) waitIdle() {
	h.mu.Lock()
	defer h.mu.Unlock()
}

// run invokes fn as a callback of this handle, unless it has been released.
func (h *Handle) run(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.Live() {
		return false
	}
	fn()
	return true
}
