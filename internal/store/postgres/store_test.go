package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bulkindex/internal/core"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeRow struct {
	key int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.key
	return nil
}

// fakeRows embeds pgx.Rows so only the methods CollectRows uses are needed.
type fakeRows struct {
	pgx.Rows
	keys []int64
	idx  int
}

func (r *fakeRows) Next() bool { r.idx++; return r.idx <= len(r.keys) }
func (r *fakeRows) Scan(dest ...any) error {
	*dest[0].(*int64) = r.keys[r.idx-1]
	return nil
}
func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	committed  bool
	rolledBack bool
}

func (t *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	t.db.copyTable = table
	t.db.copyCols = cols
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		t.db.copied = append(t.db.copied, vals)
		n++
	}
	return n, t.db.copyErr
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.db.execs = append(t.db.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { t.rolledBack = true; return nil }

type fakeDB struct {
	rows    map[string]int64
	objects []int64
	queries []string

	tx        *fakeTx
	copyTable pgx.Identifier
	copyCols  []string
	copied    [][]any
	copyErr   error
	execs     []string
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	return &fakeRows{keys: f.objects}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	key := ""
	if len(args) > 0 {
		key = args[0].(string)
	}
	if sql == nextAssocKeyQuery {
		key = "nextval"
	}
	if k, ok := f.rows[key]; ok {
		return fakeRow{key: k}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{db: f}
	return f.tx, nil
}

// ============================================================================
// Lookup Tests
// ============================================================================

func TestLookups(t *testing.T) {
	db := &fakeDB{rows: map[string]int64{"J:12345": 501, "jdoe": 1001, "nextval": 7000}}
	s := New(db, "db1", "mgd")
	ctx := context.Background()

	if k, err := s.ReferenceKey(ctx, "J:12345"); err != nil || k != 501 {
		t.Errorf("ReferenceKey() = %d, %v; want 501", k, err)
	}
	if k, err := s.UserKey(ctx, "jdoe"); err != nil || k != 1001 {
		t.Errorf("UserKey() = %d, %v; want 1001", k, err)
	}
	if _, err := s.UserKey(ctx, "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UserKey(nobody) error = %v, want ErrNotFound", err)
	}
	if k, err := s.NextAssocKey(ctx); err != nil || k != 7000 {
		t.Errorf("NextAssocKey() = %d, %v; want 7000", k, err)
	}
	if server, database := s.Describe(); server != "db1" || database != "mgd" {
		t.Errorf("Describe() = %q, %q", server, database)
	}
}

func TestFindObjects(t *testing.T) {
	db := &fakeDB{objects: []int64{11, 12}}
	s := New(db, "", "")

	keys, err := s.FindObjects(context.Background(), core.CategoryStrain, "MGI:1")
	if err != nil {
		t.Fatalf("FindObjects() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != 11 || keys[1] != 12 {
		t.Errorf("FindObjects() = %v, want [11 12]", keys)
	}
	if !strings.Contains(db.queries[0], "PRB_Strain") {
		t.Errorf("strain query = %q", db.queries[0])
	}

	if _, err := s.FindObjects(context.Background(), core.ObjectCategory(99), "MGI:1"); err == nil {
		t.Error("FindObjects() with unknown category: error = nil")
	}
}

func TestObjectQueries(t *testing.T) {
	tests := []struct {
		category core.ObjectCategory
		want     []string
	}{
		{core.CategoryMarker, []string{"MRK_Marker", "_MGIType_key = 2", "_Marker_Status_key = 1", "preferred = 1"}},
		{core.CategoryStrain, []string{"PRB_Strain", "_MGIType_key = 10", "private = 0"}},
		{core.CategoryAllele, []string{"ALL_Allele", "_MGIType_key = 11", "'Approved', 'Autoload'"}},
	}
	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			q, err := objectQuery(tt.category)
			if err != nil {
				t.Fatalf("objectQuery() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(q, want) {
					t.Errorf("query missing %q:\n%s", want, q)
				}
			}
		})
	}
}

// ============================================================================
// Load Tests
// ============================================================================

func testRecords() []core.ResolvedAssociation {
	day := time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC)
	return []core.ResolvedAssociation{
		{AssocKey: 1000, ReferenceKey: 501, ObjectKey: 7001, MGITypeKey: 2, AssocTypeKey: 1018,
			CreatedByKey: 1001, ModifiedByKey: 1001, CreationDate: day, ModificationDate: day},
		{AssocKey: 1001, ReferenceKey: 501, ObjectKey: 8001, MGITypeKey: 10, AssocTypeKey: 1031,
			CreatedByKey: 1001, ModifiedByKey: 1001, CreationDate: day, ModificationDate: day},
	}
}

func TestLoadAssociations(t *testing.T) {
	db := &fakeDB{}
	s := New(db, "", "")

	n, err := s.LoadAssociations(context.Background(), testRecords())
	if err != nil {
		t.Fatalf("LoadAssociations() error = %v", err)
	}
	if n != 2 {
		t.Errorf("copied %d rows, want 2", n)
	}
	if !db.tx.committed {
		t.Error("transaction not committed")
	}
	if db.copyTable.Sanitize() != `"mgi_reference_assoc"` {
		t.Errorf("copy table = %s", db.copyTable.Sanitize())
	}
	if len(db.copyCols) != 9 || len(db.copied[0]) != 9 {
		t.Errorf("copied %d columns with %d values, want 9", len(db.copyCols), len(db.copied[0]))
	}
	if ts, ok := db.copied[1][7].(pgtype.Timestamp); !ok || !ts.Valid {
		t.Errorf("creation_date value = %#v, want valid pgtype.Timestamp", db.copied[1][7])
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "setval") {
		t.Errorf("execs = %v, want one setval", db.execs)
	}
}

func TestLoadAssociations_CopyFailureRollsBack(t *testing.T) {
	db := &fakeDB{copyErr: &pgconn.PgError{Code: "23505", ConstraintName: "mgi_reference_assoc_pkey", Message: "duplicate key value"}}
	s := New(db, "", "")

	_, err := s.LoadAssociations(context.Background(), testRecords())
	if err == nil {
		t.Fatal("LoadAssociations() error = nil")
	}
	if !db.tx.rolledBack || db.tx.committed {
		t.Errorf("committed = %v rolledBack = %v, want rollback only", db.tx.committed, db.tx.rolledBack)
	}
	if len(db.execs) != 0 {
		t.Errorf("sequence reset after failed copy: %v", db.execs)
	}
	for _, want := range []string{"23505", "mgi_reference_assoc_pkey", "duplicate key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
