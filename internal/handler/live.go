package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/auth"
	"github.com/sakif/college-forum/internal/identity"
	"github.com/sakif/college-forum/internal/metrics"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/service"
	"github.com/sakif/college-forum/internal/session"
	"github.com/sakif/college-forum/internal/subscription"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 32
)

// LIVE PROTOCOL:
// One websocket per open view. The client names what it wants to see and
// the server pushes a complete, ordered snapshot every time it changes.
//
// Client → server:
//
//	{"op":"watch","key":"feed","target":"articles","authorId":"","limit":50}
//	{"op":"watch","key":"thread","target":"comments","articleId":"abc","ascending":true}
//	{"op":"watch","key":"jobs","target":"jobs","targetYear":"final"}
//	{"op":"unwatch","key":"feed"}
//	{"op":"signin","token":"<session token>"}
//	{"op":"signout"}
//	{"op":"vote","articleId":"abc","vote":"upvote"}
//
// Server → client:
//
//	{"type":"snapshot","key":"feed","seq":3,"items":[...]}
//	{"type":"error","key":"feed","error":"unavailable","message":"..."}
//	{"type":"session","state":"authenticated","principal":{...}}
//	{"type":"vote","data":{...}}
//
// Watching under a key that is already in use replaces that subscription.
// An articles watch carries at most service.MaxArticleLimit items; a
// missing or larger limit means that cap.

// ClientMessage is a frame sent by the browser.
type ClientMessage struct {
	Op         string `json:"op"`
	Key        string `json:"key,omitempty"`
	Target     string `json:"target,omitempty"`
	AuthorID   string `json:"authorId,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	ArticleID  string `json:"articleId,omitempty"`
	Ascending  bool   `json:"ascending,omitempty"`
	TargetYear string `json:"targetYear,omitempty"`
	Token      string `json:"token,omitempty"`
	Vote       string `json:"vote,omitempty"`
}

// ServerMessage is a frame pushed to the browser.
type ServerMessage struct {
	Type      string           `json:"type"`
	Key       string           `json:"key,omitempty"`
	Seq       uint64           `json:"seq,omitempty"`
	Items     any              `json:"items,omitempty"`
	Error     string           `json:"error,omitempty"`
	Message   string           `json:"message,omitempty"`
	State     string           `json:"state,omitempty"`
	Principal *model.Principal `json:"principal,omitempty"`
	Data      any              `json:"data,omitempty"`
}

// LiveHandler upgrades requests to websockets and serves the live protocol.
type LiveHandler struct {
	articles *service.ArticleService
	comments *service.CommentService
	jobs     *service.JobService
	votes    *service.VoteService
	profiles *service.ProfileService
	tokens   *auth.TokenService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewLiveHandler(
	articles *service.ArticleService,
	comments *service.CommentService,
	jobs *service.JobService,
	votes *service.VoteService,
	profiles *service.ProfileService,
	tokens *auth.TokenService,
	allowedOrigins []string,
	logger *slog.Logger,
) *LiveHandler {
	return &LiveHandler{
		articles: articles,
		comments: comments,
		jobs:     jobs,
		votes:    votes,
		profiles: profiles,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger,
	}
}

// checkOrigin accepts same-host requests, requests without an Origin
// header (non-browser clients) and the configured origins.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// liveConn is the per-connection view state: its own identity client,
// session holder and subscription manager.
type liveConn struct {
	h      *LiveHandler
	ws     *websocket.Conn
	ctx    context.Context
	send   chan ServerMessage
	client *identity.Client
	holder *session.Holder
	subs   *subscription.Manager
	logger *slog.Logger
}

// HandleLive serves one websocket connection.
//
// HTTP: GET /api/live
//
// The session cookie, when present, signs the view in immediately; the
// client can later switch principals with signin/signout frames.
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	metrics.LiveConnections.Inc()
	defer metrics.LiveConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := h.logger.With(slog.String("remote", r.RemoteAddr))
	c := &liveConn{
		h:      h,
		ws:     ws,
		ctx:    ctx,
		send:   make(chan ServerMessage, sendBuffer),
		client: identity.NewClient(h.tokens, logger),
		logger: logger,
	}
	c.holder = session.NewHolder(ctx, c.client, h.profiles, logger)
	c.subs = subscription.NewManager(ctx, logger)
	stopWatch := c.holder.Watch(c.sessionChanged)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	if err := c.client.Restore(ctx, auth.TokenFromRequest(r)); err != nil {
		logger.Debug("live: session cookie rejected", slog.String("error", err.Error()))
	}

	c.readLoop()

	cancel()
	c.subs.Close()
	stopWatch()
	c.holder.Close()
	<-writerDone
	_ = ws.Close()
	logger.Debug("live connection closed")
}

func (c *liveConn) readLoop() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("live: read failed", slog.String("error", err.Error()))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.fail("", apperror.ValidationFailed("body", "invalid JSON frame"))
			continue
		}
		c.dispatch(msg)
	}
}

// writeLoop is the only goroutine writing to the socket.
func (c *liveConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Warn("live: write failed", slog.String("error", err.Error()))
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}

// push queues msg for the writer. It gives up once the connection is gone.
func (c *liveConn) push(msg ServerMessage) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	}
}

func (c *liveConn) fail(key string, err error) {
	errorType, message := "internal_error", "An internal error occurred"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		_, errorType = errorStatus(err)
		message = appErr.Message
	} else if errors.Is(err, subscription.ErrClosed) {
		errorType, message = "unavailable", "connection is closing"
	}
	c.push(ServerMessage{Type: "error", Key: key, Error: errorType, Message: message})
}

func (c *liveConn) sessionChanged(state session.State, p *model.Principal) {
	c.push(ServerMessage{Type: "session", State: state.String(), Principal: p})
}

func (c *liveConn) dispatch(msg ClientMessage) {
	switch msg.Op {
	case "watch":
		if msg.Key == "" {
			c.fail("", apperror.ValidationFailed("key", "key is required"))
			return
		}
		if err := c.watch(msg); err != nil {
			c.fail(msg.Key, err)
		}

	case "unwatch":
		c.subs.ReleaseKey(msg.Key)

	case "signin":
		if _, err := c.client.SignIn(c.ctx, msg.Token); err != nil {
			c.logger.Info("live: sign-in rejected", slog.String("error", err.Error()))
			c.fail("", apperror.AuthRequired("use this session"))
		}

	case "signout":
		c.client.SignOut(c.ctx)

	case "vote":
		voteType, err := model.ParseVoteType(msg.Vote)
		if err != nil {
			c.fail("", apperror.ValidationFailed("vote", "vote type must be upvote or downvote"))
			return
		}
		state, err := c.h.votes.CastVote(c.holder.Context(c.ctx), msg.ArticleID, voteType)
		if err != nil {
			c.fail("", err)
			return
		}
		c.push(ServerMessage{Type: "vote", Data: state})

	default:
		c.fail("", apperror.ValidationFailed("op", "unknown op "+msg.Op))
	}
}

func (c *liveConn) watch(msg ClientMessage) error {
	switch msg.Target {
	case "articles":
		q := repository.ArticleQuery{AuthorID: msg.AuthorID, Limit: msg.Limit}
		return watchInto(c, msg.Key, c.h.articles.Subscribe(q))
	case "comments":
		if msg.ArticleID == "" {
			return apperror.ValidationFailed("articleId", "articleId is required")
		}
		q := repository.CommentQuery{ArticleID: msg.ArticleID, Ascending: msg.Ascending}
		return watchInto(c, msg.Key, c.h.comments.Subscribe(q))
	case "jobs":
		var q repository.JobQuery
		if msg.TargetYear != "" {
			year, err := model.ParseTargetYear(msg.TargetYear)
			if err != nil {
				return apperror.ValidationFailed("targetYear", err.Error())
			}
			q.TargetYear = year
		}
		return watchInto(c, msg.Key, c.h.jobs.Subscribe(q))
	}
	return apperror.ValidationFailed("target", "unknown target "+msg.Target)
}

// watchInto acquires a subscription whose snapshots and errors become
// frames tagged with key.
func watchInto[T any](c *liveConn, key string, subscribe subscription.SubscribeFunc[T]) error {
	_, err := subscription.Acquire(c.subs, key, subscribe,
		func(s repository.Snapshot[T]) {
			c.push(ServerMessage{Type: "snapshot", Key: key, Seq: s.Seq, Items: s.Items})
		},
		func(err error) {
			c.fail(key, err)
		},
	)
	return err
}
