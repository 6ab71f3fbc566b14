package repository

import (
	"context"
	"errors"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/session"
	"github.com/sakif/college-forum/internal/store"
)

// CommentQuery selects the comments of one article. Newest first unless
// Ascending is set.
type CommentQuery struct {
	ArticleID string
	Ascending bool
}

func (q CommentQuery) storeQuery() store.Query {
	return store.Query{
		Collection: store.CommentsCollection(q.ArticleID),
		OrderBy:    store.OrderBy{Field: fieldCreatedAt, Desc: !q.Ascending},
	}
}

type CommentRepository struct {
	store store.Store
}

func NewCommentRepository(s store.Store) *CommentRepository {
	return &CommentRepository{store: s}
}

// Create writes a comment under the article. It does not check that the
// article exists; CommentService does.
func (r *CommentRepository) Create(ctx context.Context, articleID, content string) (string, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return "", apperror.AuthRequired("comment")
	}
	return r.store.Create(ctx, store.CommentsCollection(articleID), store.Fields{
		fieldContent:      content,
		fieldAuthor:       p.DisplayName,
		fieldAuthorAvatar: p.AvatarURL,
		fieldUID:          p.ID,
		fieldCreatedAt:    store.ServerTimestamp(),
	})
}

func (r *CommentRepository) Get(ctx context.Context, articleID, id string) (*model.Comment, error) {
	doc, err := r.store.Get(ctx, store.CommentsCollection(articleID), id)
	if err != nil {
		return nil, renameNotFound(err, "comment", id)
	}
	c := decodeComment(articleID)(*doc)
	return &c, nil
}

func (r *CommentRepository) Delete(ctx context.Context, articleID, id string) error {
	err := r.store.Delete(ctx, store.CommentsCollection(articleID), id)
	return renameNotFound(err, "comment", id)
}

func (r *CommentRepository) List(ctx context.Context, q CommentQuery) ([]model.Comment, error) {
	docs, err := r.store.Query(ctx, q.storeQuery())
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, decodeComment(q.ArticleID)), nil
}

// DeleteAll removes every comment of an article and returns how many were
// removed. A comment deleted concurrently by someone else is skipped.
func (r *CommentRepository) DeleteAll(ctx context.Context, articleID string) (int, error) {
	comments, err := r.List(ctx, CommentQuery{ArticleID: articleID, Ascending: true})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range comments {
		err := r.Delete(ctx, articleID, c.ID)
		switch {
		case err == nil:
			n++
		case errors.Is(err, apperror.ErrNotFound):
		default:
			return n, err
		}
	}
	return n, nil
}

func (r *CommentRepository) Subscribe(
	q CommentQuery,
	onChange func(Snapshot[model.Comment]),
	onError func(error),
) (Unsubscribe, error) {
	return subscribe(r.store, q.storeQuery(), decodeComment(q.ArticleID), onChange, onError)
}

func decodeComment(articleID string) func(store.Document) model.Comment {
	return func(doc store.Document) model.Comment {
		f := doc.Fields
		return model.Comment{
			ID:           doc.ID,
			ArticleID:    articleID,
			Content:      f.String(fieldContent),
			AuthorID:     f.String(fieldUID),
			AuthorName:   f.String(fieldAuthor),
			AuthorAvatar: f.String(fieldAuthorAvatar),
			CreatedAt:    f.Time(fieldCreatedAt),
		}
	}
}
