// Package termindex is a local term index and document lookup backed by
// SQLite. It serves the shelf browser in the CLI, in development and in
// tests, where running a search service is not worth it.
//
// Items are stored with both shelfkeys precomputed, so term scans are a
// plain indexed range query in byte order.
package termindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/c360studio/lccshelf/callnumber"
	"github.com/c360studio/lccshelf/shelf"
)

const driverName = "sqlite"

// maxLookupValues bounds the IN list of a single lookup query.
const maxLookupValues = 500

var (
	// ErrUnknownField is returned for fields the store does not index.
	ErrUnknownField = errors.New("unknown index field")

	// ErrNoShelfkey is returned when an item's call number yields no shelfkey.
	ErrNoShelfkey = errors.New("item has no shelfkey")
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id               TEXT PRIMARY KEY,
	call_number      TEXT NOT NULL,
	shelfkey         TEXT NOT NULL,
	reverse_shelfkey TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS items_shelfkey ON items (shelfkey);
CREATE INDEX IF NOT EXISTS items_reverse_shelfkey ON items (reverse_shelfkey);
`

// columns maps browse fields to their columns.
var columns = map[shelf.Field]string{
	shelf.FieldID:              "id",
	shelf.FieldShelfkey:        "shelfkey",
	shelf.FieldReverseShelfkey: "reverse_shelfkey",
}

// Store is a SQLite-backed shelf.TermIndex and shelf.DocumentLookup.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ shelf.TermIndex      = (*Store)(nil)
	_ shelf.DocumentLookup = (*Store)(nil)
)

// Open opens or creates the index at path. Use ":memory:" for a private
// in-memory index.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	logger.Debug("Term index opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add parses raw and stores the item under id, replacing any previous
// item with that id.
func (s *Store) Add(ctx context.Context, id, raw, title string) (shelf.Document, error) {
	cn, err := callnumber.TryParse(raw)
	if err != nil {
		return shelf.Document{}, fmt.Errorf("item %s: %w", id, err)
	}
	if !cn.Valid() {
		return shelf.Document{}, fmt.Errorf("item %s: %w", id, ErrNoShelfkey)
	}
	doc := newDocument(id, cn, title)
	if err := s.Put(ctx, doc); err != nil {
		return shelf.Document{}, err
	}
	return doc, nil
}

func newDocument(id string, cn callnumber.CallNumber, title string) shelf.Document {
	return shelf.Document{
		ID:              id,
		CallNumber:      cn.String(),
		ShelfkeyValue:   cn.Shelfkey(),
		ReverseKeyValue: cn.ReverseShelfkey(),
		Title:           title,
	}
}

// Put upserts documents in a single transaction.
func (s *Store) Put(ctx context.Context, docs ...shelf.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, call_number, shelfkey, reverse_shelfkey, title)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			call_number = excluded.call_number,
			shelfkey = excluded.shelfkey,
			reverse_shelfkey = excluded.reverse_shelfkey,
			title = excluded.title`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if d.ShelfkeyValue == "" || d.ReverseKeyValue == "" {
			return fmt.Errorf("item %s: %w", d.ID, ErrNoShelfkey)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.CallNumber, d.ShelfkeyValue, d.ReverseKeyValue, d.Title); err != nil {
			return fmt.Errorf("store item %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes the item with the given id. Missing ids are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// termPrealloc caps the slice capacity reserved for a term scan.
const termPrealloc = 256

// Terms implements shelf.TermIndex.
func (s *Store) Terms(ctx context.Context, field shelf.Field, from string, limit int) ([]string, error) {
	col, ok := columns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if limit <= 0 {
		return nil, nil
	}
	// col comes from the fixed columns map.
	query := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM items WHERE %[1]s >= ? ORDER BY %[1]s LIMIT ?`, col)
	rows, err := s.db.QueryContext(ctx, query, from, limit)
	if err != nil {
		return nil, fmt.Errorf("scan %s terms: %w", field, err)
	}
	defer rows.Close()

	// limit may be far larger than the index; rows decides the length.
	terms := make([]string, 0, min(limit, termPrealloc))
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("read %s term: %w", field, err)
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// Lookup implements shelf.DocumentLookup. Documents come back in no
// particular order.
func (s *Store) Lookup(ctx context.Context, field shelf.Field, values []string) ([]shelf.Document, error) {
	col, ok := columns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	var docs []shelf.Document
	for start := 0; start < len(values); start += maxLookupValues {
		chunk := values[start:min(start+maxLookupValues, len(values))]
		found, err := s.lookupChunk(ctx, col, chunk)
		if err != nil {
			return nil, fmt.Errorf("lookup by %s: %w", field, err)
		}
		docs = append(docs, found...)
	}
	return docs, nil
}

func (s *Store) lookupChunk(ctx context.Context, col string, values []string) ([]shelf.Document, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	query := fmt.Sprintf(`SELECT id, call_number, shelfkey, reverse_shelfkey, title FROM items WHERE %s IN (%s)`, col, placeholders)

	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []shelf.Document
	for rows.Next() {
		var d shelf.Document
		if err := rows.Scan(&d.ID, &d.CallNumber, &d.ShelfkeyValue, &d.ReverseKeyValue, &d.Title); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
