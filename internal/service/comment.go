package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/college-forum/internal/access"
	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/session"
	"github.com/sakif/college-forum/internal/subscription"
)

const MaxCommentLength = 2000

type CommentService struct {
	comments CommentRepository
	articles ArticleRepository
	policy   *access.Policy
	logger   *slog.Logger
}

func NewCommentService(comments CommentRepository, articles ArticleRepository, policy *access.Policy, logger *slog.Logger) *CommentService {
	return &CommentService{comments: comments, articles: articles, policy: policy, logger: logger}
}

// Create adds a comment to an existing article.
func (s *CommentService) Create(ctx context.Context, articleID, content string) (*model.Comment, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperror.AuthRequired("comment")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment cannot be empty")
	}
	if len(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	if _, err := s.articles.Get(ctx, articleID); err != nil {
		return nil, err
	}

	id, err := s.comments.Create(ctx, articleID, content)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.logger.Info("comment created",
		slog.String("id", id),
		slog.String("articleID", articleID),
		slog.String("principalID", p.ID),
	)
	return s.comments.Get(ctx, articleID, id)
}

// Delete removes a comment; only its author or an administrator may.
func (s *CommentService) Delete(ctx context.Context, articleID, commentID string) error {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return apperror.AuthRequired("delete a comment")
	}

	c, err := s.comments.Get(ctx, articleID, commentID)
	if err != nil {
		return err
	}
	if !s.policy.CanModify(ctx, p, c.AuthorID) {
		return apperror.Forbidden("only the author or an administrator can delete this comment")
	}
	return s.comments.Delete(ctx, articleID, commentID)
}

func (s *CommentService) List(ctx context.Context, q repository.CommentQuery) ([]model.Comment, error) {
	return s.comments.List(ctx, q)
}

func (s *CommentService) Subscribe(q repository.CommentQuery) subscription.SubscribeFunc[model.Comment] {
	return func(onChange func(repository.Snapshot[model.Comment]), onError func(error)) (repository.Unsubscribe, error) {
		return s.comments.Subscribe(q, onChange, onError)
	}
}
