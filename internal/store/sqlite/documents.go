package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/store"
)

// Create inserts a document under a fresh xid.
//
// xid IDs are 20 URL-safe characters and sort by creation time, which keeps
// the (collection, id) primary key roughly append-only.
func (db *DB) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	id := xid.New().String()
	if _, err := db.insert(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

// CreateIfAbsent inserts the document only when (collection, id) is free.
// INSERT OR IGNORE makes the check and the write a single statement, so two
// concurrent callers cannot both create it.
func (db *DB) CreateIfAbsent(ctx context.Context, collection, id string, fields store.Fields) (bool, error) {
	return db.insert(ctx, collection, id, fields, true)
}

func (db *DB) insert(ctx context.Context, collection, id string, fields store.Fields, ignoreExisting bool) (bool, error) {
	ts := db.timestamp()
	raw, err := encodeFields(fields, ts)
	if err != nil {
		return false, apperror.ValidationFailed("fields", err.Error())
	}

	verb := "INSERT"
	if ignoreExisting {
		verb = "INSERT OR IGNORE"
	}
	res, err := db.conn.ExecContext(ctx,
		verb+` INTO documents (collection, id, fields, create_time, update_time)
		 VALUES (?, ?, ?, ?, ?)`,
		collection, id, raw, ts.UnixNano(), ts.UnixNano(),
	)
	if err != nil {
		return false, apperror.Transient("saving "+collection,
			fmt.Errorf("sqlite: inserting into %s: %w", collection, err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Transient("saving "+collection,
			fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n == 0 {
		return false, nil
	}

	db.published(ctx, collection)
	return true, nil
}

// Get returns one document, or apperror.NotFound.
func (db *DB) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(collection, id)
		}
		return nil, apperror.Transient("loading "+collection,
			fmt.Errorf("sqlite: getting %s/%s: %w", collection, id, err))
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, apperror.Transient("loading "+collection, fmt.Errorf("sqlite: %w", err))
	}
	return &store.Document{ID: id, Fields: fields}, nil
}

// Delete removes one document, or returns apperror.NotFound.
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if err != nil {
		return apperror.Transient("deleting from "+collection,
			fmt.Errorf("sqlite: deleting %s/%s: %w", collection, id, err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Transient("deleting from "+collection,
			fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n == 0 {
		return apperror.NotFound(collection, id)
	}

	db.published(ctx, collection)
	return nil
}

// UpdateFields merges fields into an existing document and applies ops in
// the same transaction. Because the pool holds a single connection, no
// other write can interleave between the read and the write below.
func (db *DB) UpdateFields(ctx context.Context, collection, id string, fields store.Fields, ops ...store.SetOp) error {
	err := db.readModifyWrite(ctx, collection, id, false, func(doc store.Fields) {
		maps.Copy(doc, fields)
		for _, op := range ops {
			doc[op.Field] = op.Apply(doc.Strings(op.Field))
		}
	})
	if err != nil {
		return err
	}
	db.published(ctx, collection)
	return nil
}

// SetMerge writes the named fields, creating the document when absent.
func (db *DB) SetMerge(ctx context.Context, collection, id string, fields store.Fields) error {
	err := db.readModifyWrite(ctx, collection, id, true, func(doc store.Fields) {
		maps.Copy(doc, fields)
	})
	if err != nil {
		return err
	}
	db.published(ctx, collection)
	return nil
}

func (db *DB) readModifyWrite(ctx context.Context, collection, id string, upsert bool, modify func(store.Fields)) error {
	op := "updating " + collection

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.Transient(op, fmt.Errorf("sqlite: beginning transaction: %w", err))
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&raw)
	exists := true
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !upsert {
			return apperror.NotFound(collection, id)
		}
		exists = false
		raw = "{}"
	case err != nil:
		return apperror.Transient(op, fmt.Errorf("sqlite: reading %s/%s: %w", collection, id, err))
	}

	doc, err := decodeFields(raw)
	if err != nil {
		return apperror.Transient(op, fmt.Errorf("sqlite: %w", err))
	}
	modify(doc)

	ts := db.timestamp()
	encoded, err := encodeFields(doc, ts)
	if err != nil {
		return apperror.ValidationFailed("fields", err.Error())
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET fields = ?, update_time = ? WHERE collection = ? AND id = ?`,
			encoded, ts.UnixNano(), collection, id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, fields, create_time, update_time)
			 VALUES (?, ?, ?, ?, ?)`,
			collection, id, encoded, ts.UnixNano(), ts.UnixNano(),
		)
	}
	if err != nil {
		return apperror.Transient(op, fmt.Errorf("sqlite: writing %s/%s: %w", collection, id, err))
	}

	if err := tx.Commit(); err != nil {
		return apperror.Transient(op, fmt.Errorf("sqlite: committing: %w", err))
	}
	return nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Query runs q once. Equality filters run in SQL; ordering and limit are
// applied after decoding, since they compare typed values (times) that
// SQLite only sees as JSON text.
func (db *DB) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	where := []string{"collection = ?"}
	args := []any{q.Collection}
	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return nil, apperror.ValidationFailed("query", fmt.Sprintf("invalid field name %q", f.Field))
		}
		v, err := sqlValue(f.Value)
		if err != nil {
			return nil, apperror.ValidationFailed("query", err.Error())
		}
		where = append(where, "json_extract(fields, ?) = ?")
		args = append(args, "$."+f.Field, v)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE `+strings.Join(where, " AND ")+
			` ORDER BY create_time, id`,
		args...,
	)
	if err != nil {
		return nil, apperror.Transient("loading "+q.Collection,
			fmt.Errorf("sqlite: querying %s: %w", q.Collection, err))
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, apperror.Transient("loading "+q.Collection, fmt.Errorf("sqlite: scanning row: %w", err))
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, apperror.Transient("loading "+q.Collection, fmt.Errorf("sqlite: %w", err))
		}
		docs = append(docs, store.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Transient("loading "+q.Collection, fmt.Errorf("sqlite: iterating rows: %w", err))
	}

	return q.Apply(docs), nil
}

// sqlValue converts a filter value to what json_extract yields for it:
// JSON booleans come back as 1 and 0.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case string, int, int64, float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return nil, fmt.Errorf("unsupported filter value of type %T", v)
}
