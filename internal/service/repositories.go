package service

import (
	"context"

	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
)

// The interfaces below are what the services need from the repository
// package. *repository.ArticleRepository and friends satisfy them; tests
// substitute fakes to inject store failures.

type ArticleRepository interface {
	Create(ctx context.Context, in repository.NewArticle) (string, error)
	Get(ctx context.Context, id string) (*model.Article, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q repository.ArticleQuery) ([]model.Article, error)
	Subscribe(q repository.ArticleQuery, onChange func(repository.Snapshot[model.Article]), onError func(error)) (repository.Unsubscribe, error)
	ApplyVote(ctx context.Context, id string, d repository.VoteDelta) error
}

type CommentRepository interface {
	Create(ctx context.Context, articleID, content string) (string, error)
	Get(ctx context.Context, articleID, id string) (*model.Comment, error)
	Delete(ctx context.Context, articleID, id string) error
	DeleteAll(ctx context.Context, articleID string) (int, error)
	List(ctx context.Context, q repository.CommentQuery) ([]model.Comment, error)
	Subscribe(q repository.CommentQuery, onChange func(repository.Snapshot[model.Comment]), onError func(error)) (repository.Unsubscribe, error)
}

type JobRepository interface {
	Create(ctx context.Context, in repository.NewJob) (string, error)
	Get(ctx context.Context, id string) (*model.JobListing, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q repository.JobQuery) ([]model.JobListing, error)
	Subscribe(q repository.JobQuery, onChange func(repository.Snapshot[model.JobListing]), onError func(error)) (repository.Unsubscribe, error)
}

type ProfileRepository interface {
	EnsureExists(ctx context.Context, p model.Principal) (bool, error)
	Save(ctx context.Context, id string, u repository.ProfileUpdate) error
	Get(ctx context.Context, id string) (*model.Profile, error)
}

var (
	_ ArticleRepository = (*repository.ArticleRepository)(nil)
	_ CommentRepository = (*repository.CommentRepository)(nil)
	_ JobRepository     = (*repository.JobRepository)(nil)
	_ ProfileRepository = (*repository.ProfileRepository)(nil)
)
