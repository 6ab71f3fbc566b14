// Package session holds the principal of one view and its lifecycle state.
//
// STATE MACHINE:
//
//	Unknown ──principal──▶ Authenticated ◀──principal──┐
//	   │                        │                       │
//	   └────────nil───────▶ Anonymous ──────────────────┘
//
// Transitions come only from the identity stream. A principal first has
// its profile ensured, then the state becomes Authenticated. If a newer
// event arrives while that is in flight, the older transition is dropped.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/college-forum/internal/model"
)

// State is the session lifecycle state.
type State int

const (
	Unknown State = iota
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

// PrincipalSource is the identity stream (identity.Client).
type PrincipalSource interface {
	OnPrincipalChanged(fn func(*model.Principal)) (cancel func())
}

// ProfileEnsurer creates the principal's profile when it is missing.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, p model.Principal) error
}

// Holder follows a PrincipalSource and exposes the resulting state.
type Holder struct {
	profiles ProfileEnsurer
	logger   *slog.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	stopListener func()
	wg           sync.WaitGroup

	mu        sync.Mutex
	state     State
	principal *model.Principal
	gen       uint64
	watchers  map[int]func(State, *model.Principal)
	nextWatch int

	// notifyMu orders watcher notifications the same way as transitions.
	notifyMu sync.Mutex
}

// NewHolder starts following source. The holder stops when ctx is
// cancelled or Close is called.
func NewHolder(ctx context.Context, source PrincipalSource, profiles ProfileEnsurer, logger *slog.Logger) *Holder {
	ctx, cancel := context.WithCancel(ctx)
	h := &Holder{
		profiles: profiles,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		watchers: make(map[int]func(State, *model.Principal)),
	}
	h.stopListener = source.OnPrincipalChanged(h.handle)
	return h
}

// Close stops following the identity stream and waits for an in-flight
// profile check to finish.
func (h *Holder) Close() {
	h.stopListener()
	h.cancel()
	h.wg.Wait()
}

// State returns the current lifecycle state.
func (h *Holder) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Principal returns the signed-in principal, or false unless the state is
// Authenticated.
func (h *Holder) Principal() (model.Principal, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Authenticated || h.principal == nil {
		return model.Principal{}, false
	}
	return *h.principal, true
}

// Context returns ctx carrying the principal when authenticated, so the
// holder's principal reaches repositories through explicit arguments.
func (h *Holder) Context(ctx context.Context) context.Context {
	if p, ok := h.Principal(); ok {
		return WithPrincipal(ctx, p)
	}
	return ctx
}

// Watch calls fn after every transition and returns a function that stops
// it. fn must not call Watch or Close.
func (h *Holder) Watch(fn func(State, *model.Principal)) (cancel func()) {
	h.mu.Lock()
	id := h.nextWatch
	h.nextWatch++
	h.watchers[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	}
}

func (h *Holder) handle(p *model.Principal) {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.mu.Unlock()

	if p == nil {
		h.apply(gen, Anonymous, nil)
		return
	}

	principal := *p
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx := WithPrincipal(h.ctx, principal)
		if err := h.profiles.EnsureProfile(ctx, principal); err != nil {
			h.logger.Warn("ensuring profile failed",
				slog.String("principalID", principal.ID),
				slog.String("error", err.Error()),
			)
		}
		if h.ctx.Err() != nil {
			return
		}
		h.apply(gen, Authenticated, &principal)
	}()
}

// apply commits a transition unless a newer event has superseded it.
func (h *Holder) apply(gen uint64, state State, p *model.Principal) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	if gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.state = state
	h.principal = p
	fns := make([]func(State, *model.Principal), 0, len(h.watchers))
	for _, fn := range h.watchers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(state, p)
	}
}
