package repository

import (
	"context"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/session"
	"github.com/sakif/college-forum/internal/store"
)

// NewArticle holds the fields a caller supplies when writing an article.
type NewArticle struct {
	Title   string
	Content string
	Tags    []string
}

// ArticleQuery selects articles, newest first. Empty AuthorID means all
// authors; zero Limit means no limit.
type ArticleQuery struct {
	AuthorID string
	Limit    int
}

func (q ArticleQuery) storeQuery() store.Query {
	sq := store.Query{
		Collection: store.ArticlesCollection,
		OrderBy:    store.OrderBy{Field: fieldCreatedAt, Desc: true},
		Limit:      q.Limit,
	}
	if q.AuthorID != "" {
		sq = sq.Where(fieldUID, q.AuthorID)
	}
	return sq
}

// VoteDelta is the membership change for one principal's vote.
// AddTo may be VoteNone when the vote is being withdrawn.
type VoteDelta struct {
	PrincipalID string
	AddTo       model.VoteType
	RemoveFrom  []model.VoteType
}

type ArticleRepository struct {
	store store.Store
}

func NewArticleRepository(s store.Store) *ArticleRepository {
	return &ArticleRepository{store: s}
}

// Create writes a new article authored by the principal in ctx.
// Vote sets start empty and createdAt is the store's clock.
func (r *ArticleRepository) Create(ctx context.Context, in NewArticle) (string, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return "", apperror.AuthRequired("post an article")
	}

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	return r.store.Create(ctx, store.ArticlesCollection, store.Fields{
		fieldTitle:     in.Title,
		fieldContent:   in.Content,
		fieldTags:      tags,
		fieldAuthor:    p.DisplayName,
		fieldUID:       p.ID,
		fieldCreatedAt: store.ServerTimestamp(),
		fieldUpvotes:   []string{},
		fieldDownvotes: []string{},
	})
}

func (r *ArticleRepository) Get(ctx context.Context, id string) (*model.Article, error) {
	doc, err := r.store.Get(ctx, store.ArticlesCollection, id)
	if err != nil {
		return nil, renameNotFound(err, "article", id)
	}
	a := decodeArticle(*doc)
	return &a, nil
}

func (r *ArticleRepository) Delete(ctx context.Context, id string) error {
	return renameNotFound(r.store.Delete(ctx, store.ArticlesCollection, id), "article", id)
}

// List is a one-shot read of the query.
func (r *ArticleRepository) List(ctx context.Context, q ArticleQuery) ([]model.Article, error) {
	docs, err := r.store.Query(ctx, q.storeQuery())
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, decodeArticle), nil
}

func (r *ArticleRepository) Subscribe(
	q ArticleQuery,
	onChange func(Snapshot[model.Article]),
	onError func(error),
) (Unsubscribe, error) {
	return subscribe(r.store, q.storeQuery(), decodeArticle, onChange, onError)
}

// ApplyVote submits the delta as set operations in one atomic update.
func (r *ArticleRepository) ApplyVote(ctx context.Context, id string, d VoteDelta) error {
	var ops []store.SetOp
	if field := voteField(d.AddTo); field != "" {
		ops = append(ops, store.AddToSetOp(field, d.PrincipalID))
	}
	for _, v := range d.RemoveFrom {
		if field := voteField(v); field != "" {
			ops = append(ops, store.RemoveFromSetOp(field, d.PrincipalID))
		}
	}
	if len(ops) == 0 {
		return nil
	}

	err := r.store.UpdateFields(ctx, store.ArticlesCollection, id, nil, ops...)
	return renameNotFound(err, "article", id)
}

func voteField(v model.VoteType) string {
	switch v {
	case model.VoteUp:
		return fieldUpvotes
	case model.VoteDown:
		return fieldDownvotes
	}
	return ""
}

func decodeArticle(doc store.Document) model.Article {
	f := doc.Fields
	return model.Article{
		ID:         doc.ID,
		Title:      f.String(fieldTitle),
		Content:    f.String(fieldContent),
		Tags:       f.Strings(fieldTags),
		AuthorID:   f.String(fieldUID),
		AuthorName: f.String(fieldAuthor),
		CreatedAt:  f.Time(fieldCreatedAt),
		Upvotes:    f.Strings(fieldUpvotes),
		Downvotes:  f.Strings(fieldDownvotes),
	}
}
