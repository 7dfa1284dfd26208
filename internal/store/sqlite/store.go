// Package sqlite runs the reference lookups against a local SQLite snapshot
// of the MGI tables, so files can be sanity checked without the production
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/JonMunkholm/bulkindex/internal/core"
)

// Store implements core.Backend over a SQLite snapshot.
type Store struct {
	db   *sql.DB
	path string
}

var _ core.Backend = (*Store)(nil)

// Open opens or creates the snapshot at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "mgd-snapshot.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, ensureSequenceQuery, core.AssocSequence); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sequence: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks that the snapshot is readable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Describe() (string, string) { return "sqlite", s.path }

func (s *Store) ReferenceKey(ctx context.Context, citationID string) (int64, error) {
	return s.scanKey(ctx, referenceKeyQuery, citationID)
}

func (s *Store) UserKey(ctx context.Context, login string) (int64, error) {
	return s.scanKey(ctx, userKeyQuery, login)
}

func (s *Store) scanKey(ctx context.Context, query, arg string) (int64, error) {
	var key int64
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, core.ErrNotFound
		}
		return 0, err
	}
	return key, nil
}

func (s *Store) FindObjects(ctx context.Context, c core.ObjectCategory, accID string) ([]int64, error) {
	query, ok := objectQueries[c]
	if !ok {
		return nil, fmt.Errorf("no object query for category %d", int64(c))
	}
	rows, err := s.db.QueryContext(ctx, query, accID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []int64
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// NextAssocKey advances the emulated sequence and returns its new value.
func (s *Store) NextAssocKey(ctx context.Context) (int64, error) {
	var key int64
	if err := s.db.QueryRowContext(ctx, nextvalQuery, core.AssocSequence).Scan(&key); err != nil {
		return 0, fmt.Errorf("nextval %s: %w", core.AssocSequence, err)
	}
	return key, nil
}

// LoadAssociations inserts records and moves the sequence to the highest
// key, in one transaction.
func (s *Store) LoadAssociations(ctx context.Context, records []core.ResolvedAssociation) (retN int64, retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertAssocQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var n int64
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.AssocKey, rec.ReferenceKey, rec.ObjectKey, rec.MGITypeKey, rec.AssocTypeKey,
			rec.CreatedByKey, rec.ModifiedByKey,
			rec.CreationDate.Format(sqliteDateLayout), rec.ModificationDate.Format(sqliteDateLayout),
		); err != nil {
			return 0, fmt.Errorf("insert %s key %d: %w", core.AssocTable, rec.AssocKey, err)
		}
		n++
	}
	if _, err := tx.ExecContext(ctx, setvalQuery, core.AssocSequence); err != nil {
		return 0, fmt.Errorf("setval %s: %w", core.AssocSequence, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// CountAssociations returns the number of rows in the association table.
func (s *Store) CountAssociations(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM MGI_Reference_Assoc`).Scan(&n)
	return n, err
}
