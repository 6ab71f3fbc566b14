package subscription

import (
	"sync"

	"github.com/sakif/college-forum/internal/metrics"
	"github.com/sakif/college-forum/internal/repository"
)

// mailbox holds at most one pending snapshot and one pending error.
type mailbox[T any] struct {
	mu      sync.Mutex
	pending *repository.Snapshot[T]
	err     error
	signal  chan struct{}
}

func newMailbox[T any]() *mailbox[T] {
	return &mailbox[T]{signal: make(chan struct{}, 1)}
}

// put stores s, replacing an older pending snapshot. A snapshot older than
// the pending one is dropped.
func (b *mailbox[T]) put(s repository.Snapshot[T]) {
	b.mu.Lock()
	switch {
	case b.pending == nil:
		b.pending = &s
	case s.Seq > b.pending.Seq:
		b.pending = &s
		metrics.SnapshotsDropped.WithLabelValues("superseded").Inc()
	default:
		metrics.SnapshotsDropped.WithLabelValues("stale").Inc()
	}
	b.mu.Unlock()
	b.wake()
}

func (b *mailbox[T]) putErr(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	b.wake()
}

func (b *mailbox[T]) wake() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *mailbox[T]) take() (*repository.Snapshot[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.pending, b.err
	b.pending, b.err = nil, nil
	return s, err
}

// deliver is the handle's delivery goroutine. lastSeq is only touched here,
// so ordering needs no further locking.
func deliver[T any](
	h *Handle,
	box *mailbox[T],
	onChange func(repository.Snapshot[T]),
	onError func(error),
) {
	var lastSeq uint64
	for {
		select {
		case <-h.done:
			return
		case <-box.signal:
		}

		snap, err := box.take()
		if err != nil {
			h.setErr(err)
			if onError != nil && !h.run(func() { onError(err) }) {
				return
			}
		}
		if snap == nil {
			continue
		}
		if snap.Seq <= lastSeq {
			metrics.SnapshotsDropped.WithLabelValues("stale").Inc()
			continue
		}
		lastSeq = snap.Seq
		h.setErr(nil)
		if !h.run(func() { onChange(*snap) }) {
			metrics.SnapshotsDropped.WithLabelValues("released").Inc()
			return
		}
		metrics.SnapshotsDelivered.Inc()
	}
}
