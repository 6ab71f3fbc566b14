// Package repository maps domain entities onto store documents.
//
// Repositories are thin: they pick the collection, translate fields both
// ways, stamp creation metadata and turn store.Snapshot into typed
// snapshots. Business rules (required fields, ownership, vote arithmetic)
// live in the service package, which is the only caller.
package repository

import (
	"errors"
	"sync"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/store"
)

// Stored field names. They match the documents written by the original web
// client, so existing data stays readable.
const (
	fieldUID          = "uid"
	fieldAuthor       = "author"
	fieldAuthorAvatar = "authorAvatar"
	fieldCreatedAt    = "createdAt"
	fieldTitle        = "title"
	fieldContent      = "content"
	fieldTags         = "tags"
	fieldUpvotes      = "upvotes"
	fieldDownvotes    = "downvotes"
)

// Snapshot is the complete ordered result set of a live query, decoded.
type Snapshot[T any] struct {
	Seq   uint64
	Items []T
}

// Unsubscribe stops a live query. Calling it more than once is harmless.
type Unsubscribe func()

// subscribe runs a live query and decodes each snapshot.
func subscribe[T any](
	s store.Store,
	q store.Query,
	decode func(store.Document) T,
	onChange func(Snapshot[T]),
	onError func(error),
) (Unsubscribe, error) {
	sub, err := s.SubscribeQuery(q,
		func(snap store.Snapshot) {
			onChange(Snapshot[T]{Seq: snap.Seq, Items: decodeAll(snap.Docs, decode)})
		},
		onError,
	)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.Unsubscribe(sub) })
	}, nil
}

func decodeAll[T any](docs []store.Document, decode func(store.Document) T) []T {
	items := make([]T, 0, len(docs))
	for _, d := range docs {
		items = append(items, decode(d))
	}
	return items
}

// renameNotFound swaps the store's collection-level NotFound for one that
// names the entity.
func renameNotFound(err error, resource, id string) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return apperror.NotFound(resource, id)
	}
	return err
}
