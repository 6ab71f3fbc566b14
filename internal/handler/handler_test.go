package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/college-forum/internal/access"
	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/auth"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/service"
	"github.com/sakif/college-forum/internal/session"
	"github.com/sakif/college-forum/internal/store/sqlite"
)

const adminEmail = "ops@uni.edu"

var (
	alice = model.Principal{ID: "alice", DisplayName: "Alice", Email: "alice@uni.edu"}
	bob   = model.Principal{ID: "bob", DisplayName: "Bob", Email: "bob@uni.edu"}
	admin = model.Principal{ID: "ops", DisplayName: "Ops", Email: adminEmail}
)

// testApp is the API wired over an in-memory store, routed like the server.
type testApp struct {
	srv      *httptest.Server
	tokens   *auth.TokenService
	articles *service.ArticleService
	profiles *service.ProfileService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:", sqlite.WithLogger(logger))
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-32-characters")
	require.NoError(t, err)

	articleRepo := repository.NewArticleRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	policy := access.NewPolicy(adminEmail, profileRepo)

	articles := service.NewArticleService(articleRepo, commentRepo, profileRepo, policy, logger)
	votes := service.NewVoteService(articleRepo, logger)
	comments := service.NewCommentService(commentRepo, articleRepo, policy, logger)
	jobs := service.NewJobService(repository.NewJobRepository(db), policy, logger)
	profiles := service.NewProfileService(profileRepo, logger)

	articleH := NewArticleHandler(articles, votes, logger)
	commentH := NewCommentHandler(comments, logger)
	jobH := NewJobHandler(jobs, logger)
	profileH := NewProfileHandler(profiles, logger)
	authH := NewAuthHandler(auth.NewGoogleProvider("client-id", "secret", "http://localhost/auth/google/callback"),
		nil, profiles, policy, false, logger)
	liveH := NewLiveHandler(articles, comments, jobs, votes, profiles, tokens, nil, logger)

	r := chi.NewRouter()
	r.Get("/auth/google/login", authH.HandleGoogleLogin)
	r.Get("/auth/google/callback", authH.HandleGoogleCallback)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))
		r.Get("/live", liveH.HandleLive)
		r.Get("/tags", articleH.HandleTags)
		r.Get("/articles", articleH.HandleList)
		r.Post("/articles", articleH.HandleCreate)
		r.Get("/articles/{id}", articleH.HandleGet)
		r.Delete("/articles/{id}", articleH.HandleDelete)
		r.Post("/articles/{id}/vote", articleH.HandleVote)
		r.Get("/articles/{id}/comments", commentH.HandleList)
		r.Post("/articles/{id}/comments", commentH.HandleCreate)
		r.Delete("/articles/{id}/comments/{commentID}", commentH.HandleDelete)
		r.Get("/jobs", jobH.HandleList)
		r.Post("/jobs", jobH.HandleCreate)
		r.Get("/profiles/{id}", profileH.HandleGet)
		r.Patch("/profiles/{id}", profileH.HandleUpdate)
		r.With(auth.RequireAuth(tokens)).Get("/me", authH.HandleMe)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})
	return &testApp{srv: srv, tokens: tokens, articles: articles, profiles: profiles}
}

func (a *testApp) token(t *testing.T, p model.Principal) string {
	t.Helper()
	tok, err := a.tokens.Generate(p)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request as p (anonymous when p is nil) and decodes the
// response body into out when out is non-nil.
func (a *testApp) do(t *testing.T, method, path string, p *model.Principal, body any, out any) int {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(t, *p))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func articleBody(title string) CreateArticleRequest {
	return CreateArticleRequest{
		Title:   title,
		Content: strings.TrimSpace(strings.Repeat("word ", service.MinArticleWords)),
		Tags:    []string{"Question"},
	}
}

func (a *testApp) createArticle(t *testing.T, p model.Principal, title string) ArticleResponse {
	t.Helper()
	var created ArticleResponse
	status := a.do(t, http.MethodPost, "/api/articles", &p, articleBody(title), &created)
	require.Equal(t, http.StatusCreated, status)
	return created
}

// =========================================================================
// ERROR MAPPING
// =========================================================================

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantType   string
	}{
		{apperror.ValidationFailed("title", "x"), http.StatusBadRequest, "validation_error"},
		{apperror.AuthRequired("vote"), http.StatusUnauthorized, "auth_required"},
		{apperror.Forbidden("x"), http.StatusForbidden, "forbidden"},
		{apperror.NotFound("article", "1"), http.StatusNotFound, "not_found"},
		{apperror.Conflict("profile", "1"), http.StatusConflict, "conflict"},
		{apperror.Transient("saving", errors.New("locked")), http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("creating: %w", apperror.NotFound("article", "1")), http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.wantType, func(t *testing.T) {
			status, errType := errorStatus(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, errType)
		})
	}
}

func TestWriteError_HidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("sqlite: no such table: documents"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sqlite")
}

func TestWriteError_IncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperror.ValidationFailed("title", "title is required"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ErrorResponse{Error: "validation_error", Message: "title is required", Field: "title"}, resp)
}

// =========================================================================
// ARTICLES
// =========================================================================

func TestArticles_CreateRequiresSignIn(t *testing.T) {
	app := newTestApp(t)

	var resp ErrorResponse
	status := app.do(t, http.MethodPost, "/api/articles", nil, articleBody("Hi"), &resp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_required", resp.Error)
}

func TestArticles_CreateRejectsUnknownFields(t *testing.T) {
	app := newTestApp(t)

	status := app.do(t, http.MethodPost, "/api/articles", &alice,
		map[string]any{"title": "x", "content": "y", "author": "mallory"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestArticles_CreateListGet(t *testing.T) {
	app := newTestApp(t)
	created := app.createArticle(t, alice, "Exam tips")

	assert.Equal(t, "alice", created.AuthorID)
	assert.Equal(t, 1, created.ReadingTime)
	assert.NotEmpty(t, created.Excerpt)

	var list []ArticleResponse
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/articles?tag=Question", nil, nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Exam tips", list[0].Title)

	var got ArticleResponse
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/articles/"+created.ID, nil, nil, &got))
	assert.Equal(t, created.ID, got.ID)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/api/articles?limit=abc", nil, nil, nil))
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/articles/missing", nil, nil, nil))
}

func TestArticles_Vote(t *testing.T) {
	app := newTestApp(t)
	created := app.createArticle(t, alice, "Vote on me")

	var state service.VoteState
	status := app.do(t, http.MethodPost, "/api/articles/"+created.ID+"/vote", &bob, VoteRequest{Type: "upvote"}, &state)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.VoteUp, state.Vote)

	var got ArticleResponse
	app.do(t, http.MethodGet, "/api/articles/"+created.ID, nil, nil, &got)
	assert.Equal(t, 1, got.Score)

	status = app.do(t, http.MethodPost, "/api/articles/"+created.ID+"/vote", &bob, VoteRequest{Type: "meh"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = app.do(t, http.MethodPost, "/api/articles/"+created.ID+"/vote", nil, VoteRequest{Type: "upvote"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTags_VocabularyAndCounts(t *testing.T) {
	app := newTestApp(t)
	app.createArticle(t, alice, "First question")
	app.createArticle(t, bob, "Second question")

	var vocab []string
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/tags", nil, nil, &vocab))
	assert.Equal(t, model.ArticleTags, vocab)

	var counts []service.TagCount
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/tags?used=1", nil, nil, &counts))
	assert.Equal(t, []service.TagCount{{Tag: "Question", Count: 2}}, counts)
}

func TestArticles_Delete(t *testing.T) {
	app := newTestApp(t)
	created := app.createArticle(t, alice, "Short lived")

	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodDelete, "/api/articles/"+created.ID, &bob, nil, nil))
	assert.Equal(t, http.StatusNoContent, app.do(t, http.MethodDelete, "/api/articles/"+created.ID, &admin, nil, nil))
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodDelete, "/api/articles/"+created.ID, &admin, nil, nil))
}

// =========================================================================
// COMMENTS, JOBS, PROFILES
// =========================================================================

func TestComments_CreateAndList(t *testing.T) {
	app := newTestApp(t)
	created := app.createArticle(t, alice, "Discuss")

	var c model.Comment
	status := app.do(t, http.MethodPost, "/api/articles/"+created.ID+"/comments", &bob,
		CreateCommentRequest{Content: "agreed"}, &c)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "bob", c.AuthorID)

	var list []model.Comment
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/articles/"+created.ID+"/comments?order=asc", nil, nil, &list))
	require.Len(t, list, 1)

	status = app.do(t, http.MethodPost, "/api/articles/missing/comments", &bob, CreateCommentRequest{Content: "x"}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	assert.Equal(t, http.StatusForbidden,
		app.do(t, http.MethodDelete, "/api/articles/"+created.ID+"/comments/"+c.ID, &alice, nil, nil))
	assert.Equal(t, http.StatusNoContent,
		app.do(t, http.MethodDelete, "/api/articles/"+created.ID+"/comments/"+c.ID, &bob, nil, nil))
}

func TestJobs_AdminOnly(t *testing.T) {
	app := newTestApp(t)
	in := service.JobInput{Title: "Intern", Company: "Acme", Description: "Go", TargetYear: "final"}

	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodPost, "/api/jobs", &alice, in, nil))

	var job model.JobListing
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/jobs", &admin, in, &job))
	assert.Equal(t, model.YearFinal, job.TargetYear)

	var list []model.JobListing
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/jobs?year=final", nil, nil, &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/api/jobs?year=9th", nil, nil, nil))
}

func TestProfiles_UpdateOwnOnly(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.profiles.EnsureProfile(context.Background(), alice))

	bio := "hi"
	assert.Equal(t, http.StatusForbidden,
		app.do(t, http.MethodPatch, "/api/profiles/alice", &bob, service.ProfileInput{Bio: &bio}, nil))

	var p model.Profile
	require.Equal(t, http.StatusOK,
		app.do(t, http.MethodPatch, "/api/profiles/alice", &alice, service.ProfileInput{Bio: &bio}, &p))
	assert.Equal(t, "hi", p.Bio)
	assert.Equal(t, "Alice", p.DisplayName)
}

func TestMe(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/me", nil, nil, nil))

	var me MeResponse
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/me", &admin, nil, &me))
	assert.Equal(t, "ops", me.Principal.ID)
	assert.True(t, me.Admin)
	assert.Nil(t, me.Profile)
}

// =========================================================================
// GOOGLE SIGN-IN
// =========================================================================

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestGoogleLogin_SetsStateAndRedirects(t *testing.T) {
	app := newTestApp(t)

	resp, err := noRedirectClient().Get(app.srv.URL + "/auth/google/login")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	var state string
	for _, c := range resp.Cookies() {
		if c.Name == stateCookieName {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Contains(t, resp.Header.Get("Location"), "accounts.google.com")
	assert.Contains(t, resp.Header.Get("Location"), "state="+state)
}

func TestGoogleCallback_RejectsStateMismatch(t *testing.T) {
	app := newTestApp(t)

	req, err := http.NewRequest(http.MethodGet, app.srv.URL+"/auth/google/callback?state=evil&code=c", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "good"})

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGoogleCallback_UserDenied(t *testing.T) {
	app := newTestApp(t)

	req, err := http.NewRequest(http.MethodGet, app.srv.URL+"/auth/google/callback?state=s&error=access_denied", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s"})

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?auth=denied", resp.Header.Get("Location"))
}

// Articles created through a principal-carrying context show up in the
// API the same as ones posted over HTTP.
func TestArticles_ServiceAndAPIAgree(t *testing.T) {
	app := newTestApp(t)
	_, err := app.articles.Create(session.WithPrincipal(context.Background(), bob),
		"Direct", strings.Repeat("word ", service.MinArticleWords), nil)
	require.NoError(t, err)

	var list []ArticleResponse
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/articles?author=bob", nil, nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Direct", list[0].Title)
}
