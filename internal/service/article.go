package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/college-forum/internal/access"
	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/session"
	"github.com/sakif/college-forum/internal/subscription"
)

const (
	MinArticleWords     = 150
	MaxTitleLength      = 200
	MaxTagsPerArticle   = 5
	DefaultArticleLimit = 50
	MaxArticleLimit     = 200

	// profileFetchConcurrency bounds the author lookups of ListWithAuthors.
	profileFetchConcurrency = 8
)

// AuthoredArticle is an article joined with its author's current profile.
// Author is nil when the profile could not be loaded.
type AuthoredArticle struct {
	model.Article
	Author *model.Profile `json:"authorProfile,omitempty"`
}

// ArticleService holds the rules for writing, reading and deleting
// articles.
type ArticleService struct {
	articles ArticleRepository
	comments CommentRepository
	profiles ProfileRepository
	policy   *access.Policy
	logger   *slog.Logger

	// deletes collapses concurrent identical delete requests, e.g. a
	// double-clicked delete button, into one store operation.
	deletes singleflight.Group
}

func NewArticleService(
	articles ArticleRepository,
	comments CommentRepository,
	profiles ProfileRepository,
	policy *access.Policy,
	logger *slog.Logger,
) *ArticleService {
	return &ArticleService{
		articles: articles,
		comments: comments,
		profiles: profiles,
		policy:   policy,
		logger:   logger,
	}
}

// Create validates and stores a new article written by the principal in
// ctx, then reads it back so the caller sees the store-assigned createdAt.
func (s *ArticleService) Create(ctx context.Context, title, content string, tags []string) (*model.Article, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperror.AuthRequired("post an article")
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if content == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if n := WordCount(content); n < MinArticleWords {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be at least %d words (currently %d)", MinArticleWords, n))
	}

	cleaned, err := cleanTags(tags)
	if err != nil {
		return nil, err
	}

	id, err := s.articles.Create(ctx, repository.NewArticle{Title: title, Content: content, Tags: cleaned})
	if err != nil {
		s.logger.Error("failed to create article",
			slog.String("principalID", p.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating article: %w", err)
	}

	s.logger.Info("article created",
		slog.String("id", id),
		slog.String("principalID", p.ID),
	)
	return s.articles.Get(ctx, id)
}

func cleanTags(tags []string) ([]string, error) {
	cleaned := cleanList(tags, len(tags))
	for _, t := range cleaned {
		if !model.IsKnownTag(t) {
			return nil, apperror.ValidationFailed("tags", fmt.Sprintf("unknown tag %q", t))
		}
	}
	if len(cleaned) > MaxTagsPerArticle {
		return nil, apperror.ValidationFailed("tags",
			fmt.Sprintf("an article can have at most %d tags", MaxTagsPerArticle))
	}
	return cleaned, nil
}

func (s *ArticleService) Get(ctx context.Context, id string) (*model.Article, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "article ID is required")
	}
	return s.articles.Get(ctx, id)
}

// ListOptions narrows List. Tag and Search are matched against every
// article of the author (or of the forum) before Limit is applied.
type ListOptions struct {
	AuthorID string
	Tag      string
	Search   string
	Limit    int
}

func (s *ArticleService) List(ctx context.Context, opts ListOptions) ([]model.Article, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultArticleLimit
	}
	limit = min(limit, MaxArticleLimit)

	q := repository.ArticleQuery{AuthorID: opts.AuthorID, Limit: limit}
	filtered := opts.Tag != "" || strings.TrimSpace(opts.Search) != ""
	if filtered {
		q.Limit = 0
	}

	articles, err := s.articles.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	if !filtered {
		return articles, nil
	}

	articles = FilterArticles(articles, opts.Tag, opts.Search)
	if len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// TagCounts reports how many articles carry each tag in use.
func (s *ArticleService) TagCounts(ctx context.Context) ([]TagCount, error) {
	articles, err := s.articles.List(ctx, repository.ArticleQuery{})
	if err != nil {
		return nil, fmt.Errorf("counting tags: %w", err)
	}
	return CountTags(articles), nil
}

// ListWithAuthors lists articles and joins each author's profile. Profiles
// load concurrently; a failed lookup leaves Author nil for that author
// instead of failing the whole list.
func (s *ArticleService) ListWithAuthors(ctx context.Context, opts ListOptions) ([]AuthoredArticle, error) {
	articles, err := s.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]*model.Profile)
	for _, a := range articles {
		ids[a.AuthorID] = nil
	}

	type result struct {
		id      string
		profile *model.Profile
	}
	results := make(chan result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileFetchConcurrency)
	for id := range ids {
		g.Go(func() error {
			profile, err := s.profiles.Get(gctx, id)
			if err != nil {
				s.logger.Warn("author profile unavailable",
					slog.String("principalID", id),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results <- result{id: id, profile: profile}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	for r := range results {
		ids[r.id] = r.profile
	}

	out := make([]AuthoredArticle, len(articles))
	for i, a := range articles {
		out[i] = AuthoredArticle{Article: a, Author: ids[a.AuthorID]}
	}
	return out, nil
}

// Delete removes an article and its comments. Only the author or an
// administrator may delete. Deleting an article that is already gone
// reports NotFound.
func (s *ArticleService) Delete(ctx context.Context, id string) error {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return apperror.AuthRequired("delete an article")
	}

	// Shared with concurrent duplicates, so one caller's cancellation must
	// not fail the others.
	_, err, _ := s.deletes.Do(p.ID+"/"+id, func() (any, error) {
		return nil, s.delete(context.WithoutCancel(ctx), p, id)
	})
	return err
}

func (s *ArticleService) delete(ctx context.Context, p model.Principal, id string) error {
	article, err := s.articles.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.CanModify(ctx, p, article.AuthorID) {
		return apperror.Forbidden("only the author or an administrator can delete this article")
	}

	if err := s.articles.Delete(ctx, id); err != nil {
		return err
	}

	// Comments live in a sub-collection the store does not cascade.
	n, err := s.comments.DeleteAll(ctx, id)
	if err != nil {
		s.logger.Warn("failed to delete comments of deleted article",
			slog.String("articleID", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("article deleted",
		slog.String("id", id),
		slog.String("principalID", p.ID),
		slog.Int("comments", n),
	)
	return nil
}

// Subscribe binds q into a live query for a subscription.Manager. A live
// article query never holds more than MaxArticleLimit articles; an unset
// limit means that cap.
func (s *ArticleService) Subscribe(q repository.ArticleQuery) subscription.SubscribeFunc[model.Article] {
	if q.Limit <= 0 || q.Limit > MaxArticleLimit {
		q.Limit = MaxArticleLimit
	}
	return func(onChange func(repository.Snapshot[model.Article]), onError func(error)) (repository.Unsubscribe, error) {
		return s.articles.Subscribe(q, onChange, onError)
	}
}
