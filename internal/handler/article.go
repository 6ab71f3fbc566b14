package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/service"
)

// ArticleHandler serves the article feed, single articles and votes.
type ArticleHandler struct {
	articles *service.ArticleService
	votes    *service.VoteService
	logger   *slog.Logger
}

func NewArticleHandler(articles *service.ArticleService, votes *service.VoteService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, votes: votes, logger: logger}
}

// CreateArticleRequest is the body of POST /api/articles.
type CreateArticleRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// VoteRequest is the body of POST /api/articles/{id}/vote.
type VoteRequest struct {
	Type string `json:"type"`
}

// ArticleResponse adds derived reading data to an article.
type ArticleResponse struct {
	service.AuthoredArticle
	Score       int    `json:"score"`
	ReadingTime int    `json:"readingTime"`
	Excerpt     string `json:"excerpt"`
}

const excerptLength = 200

func newArticleResponse(a service.AuthoredArticle) ArticleResponse {
	return ArticleResponse{
		AuthoredArticle: a,
		Score:           a.Score(),
		ReadingTime:     service.ReadingTime(a.Content),
		Excerpt:         service.Excerpt(a.Content, excerptLength),
	}
}

// HandleList returns the feed, newest first.
//
// HTTP: GET /api/articles?author=&tag=&q=&limit=
func (h *ArticleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := service.ListOptions{
		AuthorID: q.Get("author"),
		Tag:      q.Get("tag"),
		Search:   q.Get("q"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, apperror.ValidationFailed("limit", "limit must be a non-negative integer"))
			return
		}
		opts.Limit = n
	}

	articles, err := h.articles.ListWithAuthors(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list articles", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	resp := make([]ArticleResponse, len(articles))
	for i, a := range articles {
		resp[i] = newArticleResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleTags returns every tag a writer may choose from. With ?used=1 it
// returns the tags carried by existing articles and how many carry each.
//
// HTTP: GET /api/tags
func (h *ArticleHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("used") == "" {
		writeJSON(w, http.StatusOK, model.ArticleTags)
		return
	}

	counts, err := h.articles.TagCounts(r.Context())
	if err != nil {
		h.logger.Error("failed to count tags", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HTTP: GET /api/articles/{id}
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.articles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newArticleResponse(service.AuthoredArticle{Article: *a}))
}

// HandleCreate publishes an article as the signed-in principal.
//
// HTTP: POST /api/articles
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.articles.Create(r.Context(), req.Title, req.Content, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newArticleResponse(service.AuthoredArticle{Article: *a}))
}

// HTTP: DELETE /api/articles/{id}
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.articles.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVote toggles the caller's vote.
//
// HTTP: POST /api/articles/{id}/vote
// REQUEST BODY: {"type": "upvote"} or {"type": "downvote"}
func (h *ArticleHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	voteType, err := model.ParseVoteType(req.Type)
	if err != nil {
		writeError(w, apperror.ValidationFailed("type", "vote type must be upvote or downvote"))
		return
	}

	state, err := h.votes.CastVote(r.Context(), chi.URLParam(r, "id"), voteType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
