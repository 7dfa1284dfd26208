// Package postgres resolves curator input against the MGI reference
// database and bulk loads verified association files over the COPY protocol.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/bulkindex/internal/config"
	"github.com/JonMunkholm/bulkindex/internal/core"
)

// DBTX is the query surface shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts the load transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements core.Backend over a PostgreSQL connection pool.
type Store struct {
	db       DBTX
	beginner TxBeginner
	pool     *pgxpool.Pool

	server   string
	database string
}

var _ core.Backend = (*Store)(nil)

// Open connects a pool using the database settings and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool, poolConfig.ConnConfig.Host, poolConfig.ConnConfig.Database)
	s.pool = pool
	return s, nil
}

// New wraps an existing connection. server and database only feed the
// diagnostics header.
func New(db interface {
	DBTX
	TxBeginner
}, server, database string) *Store {
	return &Store{db: db, beginner: db, server: server, database: database}
}

// Close releases the pool opened by Open.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func (s *Store) Describe() (string, string) { return s.server, s.database }

// ReferenceKey looks up a reference by its J: number.
func (s *Store) ReferenceKey(ctx context.Context, citationID string) (int64, error) {
	return s.scanKey(ctx, referenceKeyQuery, citationID)
}

// UserKey looks up a user by login.
func (s *Store) UserKey(ctx context.Context, login string) (int64, error) {
	return s.scanKey(ctx, userKeyQuery, login)
}

func (s *Store) scanKey(ctx context.Context, query, arg string) (int64, error) {
	var key int64
	if err := s.db.QueryRow(ctx, query, arg).Scan(&key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, core.ErrNotFound
		}
		return 0, err
	}
	return key, nil
}

// FindObjects returns every object key of category c with accID as its
// preferred MGI id.
func (s *Store) FindObjects(ctx context.Context, c core.ObjectCategory, accID string) ([]int64, error) {
	query, err := objectQuery(c)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, accID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// NextAssocKey draws the first key of a run from the association sequence.
func (s *Store) NextAssocKey(ctx context.Context) (int64, error) {
	var key int64
	if err := s.db.QueryRow(ctx, nextAssocKeyQuery).Scan(&key); err != nil {
		return 0, fmt.Errorf("nextval %s: %w", core.AssocSequence, err)
	}
	return key, nil
}

// LoadAssociations copies records into the association table and moves the
// sequence to the highest key, in one transaction.
func (s *Store) LoadAssociations(ctx context.Context, records []core.ResolvedAssociation) (int64, error) {
	var copied int64
	err := pgx.BeginFunc(ctx, s.beginner, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"mgi_reference_assoc"}, assocColumns, newAssocRows(records))
		if err != nil {
			return fmt.Errorf("copy into %s: %w", core.AssocTable, describePgError(err))
		}
		if _, err := tx.Exec(ctx, resetSequenceQuery); err != nil {
			return fmt.Errorf("setval %s: %w", core.AssocSequence, describePgError(err))
		}
		copied = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}

// describePgError adds the constraint and SQLSTATE of a server error.
func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.ConstraintName != "" {
		return fmt.Errorf("%w (constraint %s, SQLSTATE %s)", err, pgErr.ConstraintName, pgErr.Code)
	}
	return fmt.Errorf("%w (SQLSTATE %s)", err, pgErr.Code)
}

// assocRows feeds records to CopyFrom without materializing [][]any.
type assocRows struct {
	records []core.ResolvedAssociation
	idx     int
}

func newAssocRows(records []core.ResolvedAssociation) *assocRows {
	return &assocRows{records: records, idx: -1}
}

func (r *assocRows) Next() bool {
	r.idx++
	return r.idx < len(r.records)
}

func (r *assocRows) Values() ([]any, error) {
	rec := r.records[r.idx]
	return []any{
		rec.AssocKey,
		rec.ReferenceKey,
		rec.ObjectKey,
		rec.MGITypeKey,
		rec.AssocTypeKey,
		rec.CreatedByKey,
		rec.ModifiedByKey,
		pgtype.Timestamp{Time: rec.CreationDate, Valid: true},
		pgtype.Timestamp{Time: rec.ModificationDate, Valid: true},
	}, nil
}

func (r *assocRows) Err() error { return nil }
