// Package store defines the document-store capability the rest of the
// application is written against.
//
// The store owns every durable entity. Repositories never cache writes; all
// local state is a projection of what the store returns or pushes through a
// live query. The sqlite sub-package is the implementation wired in
// production and in tests.
package store

import (
	"context"
)

// Logical collections.
const (
	UsersCollection    = "users"
	ArticlesCollection = "posts"
	JobsCollection     = "jobOpportunities"
)

// CommentsCollection returns the sub-collection holding an article's comments.
func CommentsCollection(articleID string) string {
	return ArticlesCollection + "/" + articleID + "/comments"
}

// Document is one stored record. ID is unique within its collection.
type Document struct {
	ID     string
	Fields Fields
}

// Snapshot is the complete, ordered result of a live query at one point in
// time. Seq strictly increases for a given subscription, so a consumer can
// recognise (and drop) an older snapshot that arrives after a newer one.
type Snapshot struct {
	Seq  uint64
	Docs []Document
}

// Subscription identifies a live query returned by SubscribeQuery.
type Subscription interface {
	Query() Query
}

// Store is the remote document store.
//
// Every method is safe for concurrent use. Errors are apperror values:
// NotFound for missing documents, Transient for driver/network failures.
type Store interface {
	// Create inserts a document with a generated ID and returns that ID.
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// CreateIfAbsent inserts the document under id only if none exists.
	// It never touches an existing document.
	CreateIfAbsent(ctx context.Context, collection, id string, fields Fields) (bool, error)

	// SetMerge writes the named fields, creating the document if needed.
	// Fields not named are left untouched.
	SetMerge(ctx context.Context, collection, id string, fields Fields) error

	Get(ctx context.Context, collection, id string) (*Document, error)
	Delete(ctx context.Context, collection, id string) error

	// UpdateFields merges fields into an existing document and applies the
	// set operations, all in one atomic step.
	UpdateFields(ctx context.Context, collection, id string, fields Fields, ops ...SetOp) error

	// Query runs a one-shot read of the query's full result set.
	Query(ctx context.Context, q Query) ([]Document, error)

	// SubscribeQuery starts a live query. onSnapshot receives the full
	// result set once initially and again after every change to the
	// collection; onError receives failures to (re)run the query.
	SubscribeQuery(q Query, onSnapshot func(Snapshot), onError func(error)) (Subscription, error)

	// Unsubscribe stops a live query. No callback starts after it returns.
	Unsubscribe(sub Subscription)
}

type serverTimestamp struct{}

// ServerTimestamp is a write-time placeholder. The store replaces it with
// its own clock when the write is applied, so createdAt values are ordered
// consistently across every client regardless of their local clocks.
func ServerTimestamp() any {
	return serverTimestamp{}
}

// IsServerTimestamp reports whether v is the ServerTimestamp placeholder.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}
