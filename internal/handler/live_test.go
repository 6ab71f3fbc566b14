package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/service"
	"github.com/sakif/college-forum/internal/session"
)

// liveFrame mirrors ServerMessage with raw items for decoding in tests.
type liveFrame struct {
	Type      string           `json:"type"`
	Key       string           `json:"key"`
	Seq       uint64           `json:"seq"`
	Items     json.RawMessage  `json:"items"`
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	State     string           `json:"state"`
	Principal *model.Principal `json:"principal"`
	Data      json.RawMessage  `json:"data"`
}

func dialLive(t *testing.T, app *testApp, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(app.srv.URL, "http") + "/api/live"
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })
	return ws
}

// next reads frames until match accepts one.
func next(t *testing.T, ws *websocket.Conn, match func(liveFrame) bool) liveFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f liveFrame
		require.NoError(t, ws.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func ofType(typ string) func(liveFrame) bool {
	return func(f liveFrame) bool { return f.Type == typ }
}

func send(t *testing.T, ws *websocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(msg))
}

func TestLive_WatchDeliversSnapshots(t *testing.T) {
	app := newTestApp(t)
	ws := dialLive(t, app, nil)

	send(t, ws, ClientMessage{Op: "watch", Key: "feed", Target: "articles"})
	first := next(t, ws, ofType("snapshot"))
	assert.Equal(t, "feed", first.Key)
	assert.JSONEq(t, `[]`, string(first.Items))

	_, err := app.articles.Create(session.WithPrincipal(context.Background(), alice),
		"Fresh", strings.Repeat("word ", service.MinArticleWords), []string{"Event"})
	require.NoError(t, err)

	var items []model.Article
	f := next(t, ws, func(f liveFrame) bool {
		items = nil
		return f.Type == "snapshot" && json.Unmarshal(f.Items, &items) == nil && len(items) == 1
	})
	assert.Greater(t, f.Seq, first.Seq)
	assert.Equal(t, "Fresh", items[0].Title)
}

func TestLive_WatchValidation(t *testing.T) {
	app := newTestApp(t)
	ws := dialLive(t, app, nil)

	send(t, ws, ClientMessage{Op: "watch", Key: "thread", Target: "comments"})
	f := next(t, ws, ofType("error"))
	assert.Equal(t, "thread", f.Key)
	assert.Equal(t, "validation_error", f.Error)

	send(t, ws, ClientMessage{Op: "dance"})
	f = next(t, ws, ofType("error"))
	assert.Equal(t, "unknown op dance", f.Message)
}

func TestLive_SessionFromCookie(t *testing.T) {
	app := newTestApp(t)
	header := http.Header{}
	header.Set("Cookie", "token="+app.token(t, alice))
	ws := dialLive(t, app, header)

	f := next(t, ws, ofType("session"))
	assert.Equal(t, session.Authenticated.String(), f.State)
	require.NotNil(t, f.Principal)
	assert.Equal(t, "alice", f.Principal.ID)

	// The profile was created on the way to Authenticated.
	p, err := app.profiles.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
}

func TestLive_SignInVoteSignOut(t *testing.T) {
	app := newTestApp(t)
	article := app.createArticle(t, alice, "Vote live")
	ws := dialLive(t, app, nil)

	f := next(t, ws, ofType("session"))
	assert.Equal(t, session.Anonymous.String(), f.State)

	send(t, ws, ClientMessage{Op: "vote", ArticleID: article.ID, Vote: "upvote"})
	f = next(t, ws, ofType("error"))
	assert.Equal(t, "auth_required", f.Error)

	send(t, ws, ClientMessage{Op: "signin", Token: app.token(t, bob)})
	f = next(t, ws, func(f liveFrame) bool { return f.Type == "session" && f.State == "authenticated" })
	assert.Equal(t, "bob", f.Principal.ID)

	send(t, ws, ClientMessage{Op: "vote", ArticleID: article.ID, Vote: "upvote"})
	f = next(t, ws, ofType("vote"))
	var state service.VoteState
	require.NoError(t, json.Unmarshal(f.Data, &state))
	assert.Equal(t, model.VoteUp, state.Vote)
	assert.Equal(t, "bob", state.PrincipalID)

	send(t, ws, ClientMessage{Op: "signout"})
	f = next(t, ws, ofType("session"))
	assert.Equal(t, "anonymous", f.State)
	assert.Nil(t, f.Principal)
}

func TestLive_BadTokenIsRejected(t *testing.T) {
	app := newTestApp(t)
	ws := dialLive(t, app, nil)

	send(t, ws, ClientMessage{Op: "signin", Token: "not-a-jwt"})
	f := next(t, ws, ofType("error"))
	assert.Equal(t, "auth_required", f.Error)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://forum.uni.edu"})

	req := func(origin string) *http.Request {
		r, _ := http.NewRequest(http.MethodGet, "http://api.uni.edu/api/live", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(req("")))
	assert.True(t, check(req("https://forum.uni.edu")))
	assert.True(t, check(req("http://api.uni.edu")))
	assert.False(t, check(req("https://evil.example")))
}
