package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// CreateCommentRequest is the body of POST /api/articles/{id}/comments.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// HandleList returns an article's comments, newest first unless
// ?order=asc.
//
// HTTP: GET /api/articles/{id}/comments
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := repository.CommentQuery{
		ArticleID: chi.URLParam(r, "id"),
		Ascending: r.URL.Query().Get("order") == "asc",
	}
	comments, err := h.comments.List(r.Context(), q)
	if err != nil {
		h.logger.Error("failed to list comments",
			slog.String("articleID", q.ArticleID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HTTP: POST /api/articles/{id}/comments
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.comments.Create(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HTTP: DELETE /api/articles/{id}/comments/{commentID}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.comments.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "commentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
