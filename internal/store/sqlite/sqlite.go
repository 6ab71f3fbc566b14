// Package sqlite implements store.Store as a document store on top of SQLite.
//
// DOCUMENTS IN A RELATIONAL DATABASE:
// Every document lives in one table keyed by (collection, id). Its fields are
// a JSON object in the fields column. SQLite's json_extract lets equality
// filters run inside the database, so a query like "posts where uid = X"
// never has to decode unrelated rows.
//
// WHY A SINGLE CONNECTION?
// SQLite allows one writer at a time. With more than one pooled connection
// two goroutines can both read a document inside their transactions and then
// race to upgrade to a write lock, and one of them gets SQLITE_BUSY. Keeping
// the pool at one connection turns every transaction into a strict sequence,
// which is exactly what the set-update primitives need to be atomic. It also
// keeps ":memory:" databases alive: each new connection to ":memory:" would
// otherwise open a fresh, empty database.
//
// LIVE QUERIES:
// After every committed write the store publishes the collection name on a
// changefeed.Feed. Each live query watching that collection re-runs and
// delivers the complete result set (see live.go).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/college-forum/internal/changefeed"
	"github.com/sakif/college-forum/internal/store"

	// Registers the pure-Go "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

var _ store.Store = (*DB)(nil)

// DB is a document store backed by one SQLite database.
type DB struct {
	conn   *sql.DB
	feed   changefeed.Feed
	logger *slog.Logger

	clockMu sync.Mutex
	now     func() time.Time
	last    time.Time

	// ctx scopes the feed subscription and every live query goroutine.
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	liveMu sync.Mutex
	live   map[string]map[*liveQuery]struct{}
}

// Option configures a DB.
type Option func(*DB)

// WithFeed sets the change feed. The default is an in-process feed, which
// is enough when a single server owns the database file.
func WithFeed(feed changefeed.Feed) Option {
	return func(db *DB) { db.feed = feed }
}

func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// WithClock replaces the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// New opens the database, runs migrations and starts listening on the feed.
//
// dbPath examples:
//   - "data/forum.db" → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests)
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets other processes read while this one writes. ":memory:"
	// databases answer "memory" here, which is fine.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	db := &DB{
		conn:   conn,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		live:   make(map[string]map[*liveQuery]struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.logger = slog.Default()
	}
	if db.feed == nil {
		db.feed = changefeed.NewLocal(db.logger)
	}

	if err := db.migrate(); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	if err := db.feed.Subscribe(ctx, db.notify); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("sqlite: subscribing to change feed: %w", err)
	}

	return db, nil
}

// dsn asks the driver to start every transaction with BEGIN IMMEDIATE, so a
// read-modify-write takes the write lock up front when several processes
// share the file.
func dsn(dbPath string) string {
	if dbPath == ":memory:" || strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_txlock=immediate"
}

// Ping reports whether the database answers. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close stops every live query, waits for their goroutines, then closes
// the connection pool. It is safe to call more than once.
func (db *DB) Close() error {
	var err error
	db.closeOnce.Do(func() {
		db.cancel()
		db.wg.Wait()
		err = db.conn.Close()
	})
	return err
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection  TEXT NOT NULL,
			id          TEXT NOT NULL,
			fields      TEXT NOT NULL DEFAULT '{}',
			create_time INTEGER NOT NULL,
			update_time INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_collection_created
			ON documents(collection, create_time);
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// timestamp resolves store.ServerTimestamp. Values are strictly increasing
// within the process even if the wall clock stalls or steps back.
func (db *DB) timestamp() time.Time {
	db.clockMu.Lock()
	defer db.clockMu.Unlock()

	t := db.now().UTC()
	if !t.After(db.last) {
		t = db.last.Add(time.Nanosecond)
	}
	db.last = t
	return t
}

// published tells every watcher that collection changed. A feed failure
// is not a write failure: the write is already committed, so the local
// watchers are notified directly and remote ones catch up on their next
// change.
func (db *DB) published(ctx context.Context, collection string) {
	if err := db.feed.Publish(context.WithoutCancel(ctx), collection); err != nil {
		db.logger.Warn("change feed publish failed",
			slog.String("collection", collection),
			slog.String("error", err.Error()),
		)
		db.notify(collection)
	}
}
