// Package identity is the client side of the hosted identity provider: it
// resolves credentials into principals and broadcasts every change of the
// signed-in principal, in order, to its listeners.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/college-forum/internal/model"
)

// Authenticator turns a credential (OAuth code, session token) into a
// principal.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (model.Principal, error)
}

// Client tracks the principal of one view.
//
// Until Restore, SignIn or SignOut is called the principal is unresolved
// and listeners receive nothing; afterwards every listener is called with
// the current principal (nil when signed out), first on registration and
// then on every change.
type Client struct {
	auth   Authenticator
	logger *slog.Logger

	mu        sync.Mutex
	resolved  bool
	current   *model.Principal
	listeners map[int]func(*model.Principal)
	next      int

	// emitMu keeps emissions ordered: a listener never sees an older
	// principal after a newer one.
	emitMu sync.Mutex
}

func NewClient(auth Authenticator, logger *slog.Logger) *Client {
	return &Client{
		auth:      auth,
		logger:    logger,
		listeners: make(map[int]func(*model.Principal)),
	}
}

// OnPrincipalChanged registers fn and returns a function that removes it.
func (c *Client) OnPrincipalChanged(fn func(*model.Principal)) (cancel func()) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	id := c.next
	c.next++
	c.listeners[id] = fn
	resolved, current := c.resolved, c.current
	c.mu.Unlock()

	if resolved {
		fn(clonePrincipal(current))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Restore resolves a previously issued credential, typically the session
// cookie presented when a view opens. An empty or invalid credential
// resolves to "signed out".
func (c *Client) Restore(ctx context.Context, credential string) error {
	if credential == "" {
		c.set(nil)
		return nil
	}
	p, err := c.auth.Authenticate(ctx, credential)
	if err != nil {
		c.set(nil)
		return fmt.Errorf("identity: restoring session: %w", err)
	}
	c.set(&p)
	return nil
}

// SignIn authenticates credential and makes its principal current.
// On failure the current principal is unchanged.
func (c *Client) SignIn(ctx context.Context, credential string) (model.Principal, error) {
	p, err := c.auth.Authenticate(ctx, credential)
	if err != nil {
		return model.Principal{}, fmt.Errorf("identity: signing in: %w", err)
	}
	c.logger.Info("principal signed in", slog.String("principalID", p.ID))
	c.set(&p)
	return p, nil
}

// SignOut clears the current principal.
func (c *Client) SignOut(_ context.Context) {
	c.set(nil)
}

// Current returns the principal, or nil when signed out or unresolved.
func (c *Client) Current() *model.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePrincipal(c.current)
}

func (c *Client) set(p *model.Principal) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.resolved = true
	c.current = clonePrincipal(p)
	fns := make([]func(*model.Principal), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(clonePrincipal(p))
	}
}

func clonePrincipal(p *model.Principal) *model.Principal {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
