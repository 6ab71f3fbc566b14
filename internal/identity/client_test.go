package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/college-forum/internal/model"
)

// fakeAuth accepts credentials of the form "ok:<id>".
type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, credential string) (model.Principal, error) {
	if len(credential) > 3 && credential[:3] == "ok:" {
		return model.Principal{ID: credential[3:], DisplayName: credential[3:]}, nil
	}
	return model.Principal{}, errors.New("bad credential")
}

type events struct {
	mu  sync.Mutex
	got []string
}

func (e *events) record(p *model.Principal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil {
		e.got = append(e.got, "<none>")
		return
	}
	e.got = append(e.got, p.ID)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.got...)
}

func newClient() *Client {
	return NewClient(fakeAuth{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_UnresolvedEmitsNothing(t *testing.T) {
	c := newClient()
	var ev events
	c.OnPrincipalChanged(ev.record)

	assert.Empty(t, ev.list())
	assert.Nil(t, c.Current())
}

func TestClient_EmitsChangesInOrder(t *testing.T) {
	c := newClient()
	var ev events
	cancel := c.OnPrincipalChanged(ev.record)
	ctx := context.Background()

	require.NoError(t, c.Restore(ctx, ""))
	_, err := c.SignIn(ctx, "ok:alice")
	require.NoError(t, err)
	c.SignOut(ctx)

	assert.Equal(t, []string{"<none>", "alice", "<none>"}, ev.list())

	cancel()
	_, err = c.SignIn(ctx, "ok:bob")
	require.NoError(t, err)
	assert.Len(t, ev.list(), 3, "cancelled listener receives nothing")
}

func TestClient_LateListenerGetsCurrent(t *testing.T) {
	c := newClient()
	require.NoError(t, c.Restore(context.Background(), "ok:alice"))

	var ev events
	c.OnPrincipalChanged(ev.record)
	assert.Equal(t, []string{"alice"}, ev.list())
}

func TestClient_FailedSignInKeepsPrincipal(t *testing.T) {
	c := newClient()
	ctx := context.Background()
	_, err := c.SignIn(ctx, "ok:alice")
	require.NoError(t, err)

	_, err = c.SignIn(ctx, "garbage")
	assert.Error(t, err)
	require.NotNil(t, c.Current())
	assert.Equal(t, "alice", c.Current().ID)
}

func TestClient_RestoreWithBadCredentialSignsOut(t *testing.T) {
	c := newClient()
	var ev events
	c.OnPrincipalChanged(ev.record)

	err := c.Restore(context.Background(), "expired")
	assert.Error(t, err)
	assert.Equal(t, []string{"<none>"}, ev.list())
}
