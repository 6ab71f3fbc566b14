package sqlite

import (
	"context"
	"sync"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/store"
)

// liveQuery is one running SubscribeQuery.
//
// dirty has capacity one: any number of change notifications arriving
// while a query is running collapse into a single re-run, and that re-run
// reads the latest committed state.
type liveQuery struct {
	query      store.Query
	onSnapshot func(store.Snapshot)
	onError    func(error)

	dirty  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// mu is held while a callback runs; stopped is set under it, so once
	// Unsubscribe returns no callback can start.
	mu      sync.Mutex
	stopped bool
	seq     uint64
}

func (lq *liveQuery) Query() store.Query { return lq.query }

// SubscribeQuery starts a live query. The initial snapshot is delivered
// asynchronously, from the same goroutine as every later one.
func (db *DB) SubscribeQuery(q store.Query, onSnapshot func(store.Snapshot), onError func(error)) (store.Subscription, error) {
	if q.Collection == "" {
		return nil, apperror.ValidationFailed("query", "collection is required")
	}
	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return nil, apperror.ValidationFailed("query", "invalid field name "+f.Field)
		}
		if _, err := sqlValue(f.Value); err != nil {
			return nil, apperror.ValidationFailed("query", err.Error())
		}
	}
	if err := db.ctx.Err(); err != nil {
		return nil, apperror.Transient("subscribing to "+q.Collection, err)
	}

	ctx, cancel := context.WithCancel(db.ctx)
	lq := &liveQuery{
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
		dirty:      make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
	lq.dirty <- struct{}{}

	db.liveMu.Lock()
	set, ok := db.live[q.Collection]
	if !ok {
		set = make(map[*liveQuery]struct{})
		db.live[q.Collection] = set
	}
	set[lq] = struct{}{}
	db.liveMu.Unlock()

	db.wg.Add(1)
	go db.run(lq)

	return lq, nil
}

// Unsubscribe stops a live query. It must not be called from inside that
// query's own callbacks.
func (db *DB) Unsubscribe(sub store.Subscription) {
	lq, ok := sub.(*liveQuery)
	if !ok {
		return
	}
	lq.cancel()

	db.liveMu.Lock()
	if set, ok := db.live[lq.query.Collection]; ok {
		delete(set, lq)
		if len(set) == 0 {
			delete(db.live, lq.query.Collection)
		}
	}
	db.liveMu.Unlock()

	lq.mu.Lock()
	lq.stopped = true
	lq.mu.Unlock()
}

// notify marks every live query on collection as dirty.
func (db *DB) notify(collection string) {
	db.liveMu.Lock()
	defer db.liveMu.Unlock()
	for lq := range db.live[collection] {
		select {
		case lq.dirty <- struct{}{}:
		default:
		}
	}
}

func (db *DB) run(lq *liveQuery) {
	defer db.wg.Done()
	defer lq.cancel()

	for {
		select {
		case <-lq.ctx.Done():
			return
		case <-lq.dirty:
		}

		docs, err := db.Query(lq.ctx, lq.query)
		if lq.ctx.Err() != nil {
			return
		}

		lq.mu.Lock()
		if lq.stopped {
			lq.mu.Unlock()
			return
		}
		if err != nil {
			lq.onError(err)
		} else {
			lq.seq++
			lq.onSnapshot(store.Snapshot{Seq: lq.seq, Docs: docs})
		}
		lq.mu.Unlock()
	}
}
