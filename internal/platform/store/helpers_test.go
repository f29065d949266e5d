package store

import (
	"context"
	"errors"
	"testing"

	perr "repocrawl/internal/platform/errors"
)

// memRows serves canned rows of (id, name) pairs for helper tests
type memRows struct {
	data   [][2]any
	pos    int
	closed bool
	err    error
}

func (m *memRows) Next() bool {
	if m.pos >= len(m.data) {
		return false
	}
	m.pos++
	return true
}

func (m *memRows) Scan(dest ...any) error {
	cur := m.data[m.pos-1]
	for i := range dest {
		if i >= len(cur) {
			break
		}
		switch d := dest[i].(type) {
		case *int:
			v, ok := cur[i].(int)
			if !ok {
				return errors.New("memRows: column is not an int")
			}
			*d = v
		case *string:
			v, ok := cur[i].(string)
			if !ok {
				return errors.New("memRows: column is not a string")
			}
			*d = v
		default:
			return errors.New("memRows: unsupported dest type")
		}
	}
	return nil
}

func (m *memRows) Err() error        { return m.err }
func (m *memRows) Close()            { m.closed = true }
func (m *memRows) Columns() []string { return []string{"id", "name"} }

// memTag is a canned CommandTag
type memTag string

func (m memTag) String() string { return string(m) }
func (m memTag) RowsAffected() int64 {
	if m == "" {
		return 0
	}
	return 1
}

// memQ is a RowQuerier that returns canned results
type memQ struct {
	tag      memTag
	execErr  error
	rows     *memRows
	queryErr error

	lastSQL  string
	lastArgs []any
}

func (m *memQ) Exec(_ context.Context, sql string, args ...any) (CommandTag, error) {
	m.lastSQL, m.lastArgs = sql, args
	return m.tag, m.execErr
}

func (m *memQ) Query(_ context.Context, sql string, args ...any) (Rows, error) {
	m.lastSQL, m.lastArgs = sql, args
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.rows, nil
}

func (m *memQ) QueryRow(_ context.Context, sql string, args ...any) Row {
	m.lastSQL, m.lastArgs = sql, args
	if m.rows != nil && m.rows.Next() {
		return &rowFromRows{rows: m.rows}
	}
	return failRow{err: errors.New("no rows")}
}

type failRow struct{ err error }

func (f failRow) Scan(...any) error { return f.err }

type pair struct {
	ID   int
	Name string
}

func scanPair(r Row) (pair, error) {
	var p pair
	err := r.Scan(&p.ID, &p.Name)
	return p, err
}

func TestExec_PassesThrough(t *testing.T) {
	t.Parallel()

	q := &memQ{tag: memTag("UPDATE 1")}
	tag, err := Exec(context.Background(), q, "UPDATE t SET a=$1", 7)
	if err != nil {
		t.Fatalf("Exec error: %v", err)
	}
	if tag.String() != "UPDATE 1" {
		t.Fatalf("unexpected tag: %q", tag.String())
	}
	if q.lastSQL != "UPDATE t SET a=$1" || len(q.lastArgs) != 1 {
		t.Fatalf("args not forwarded: sql=%q args=%v", q.lastSQL, q.lastArgs)
	}
}

func TestExecOne(t *testing.T) {
	t.Parallel()

	// exactly one affected
	q := &memQ{tag: memTag("INSERT 0 1")}
	if err := ExecOne(context.Background(), q, "INSERT ..."); err != nil {
		t.Fatalf("ExecOne error: %v", err)
	}

	// zero affected
	q = &memQ{tag: memTag("UPDATE 0")}
	if err := ExecOne(context.Background(), q, "UPDATE ..."); err == nil {
		t.Fatalf("expected error for zero rows affected")
	}

	// exec error propagates
	boom := errors.New("boom")
	q = &memQ{execErr: boom}
	if err := ExecOne(context.Background(), q, "x"); !errors.Is(err, boom) {
		t.Fatalf("expected exec error, got %v", err)
	}
}

func TestScalar(t *testing.T) {
	t.Parallel()

	q := &memQ{rows: &memRows{data: [][2]any{{42, "x"}}}}
	got, err := Scalar[int](context.Background(), q, "SELECT count(*) FROM t")
	if err != nil {
		t.Fatalf("Scalar error: %v", err)
	}
	if got != 42 {
		t.Fatalf("Scalar = %d, want 42", got)
	}

	// scan failure surfaces
	q = &memQ{} // no rows; QueryRow returns failRow
	if _, err := Scalar[int](context.Background(), q, "SELECT 1"); err == nil {
		t.Fatalf("expected error from Scalar scan")
	}
}

func TestOne(t *testing.T) {
	t.Parallel()

	// single row
	q := &memQ{rows: &memRows{data: [][2]any{{1, "alpha"}}}}
	got, err := One(context.Background(), q, scanPair, "SELECT id, name FROM t WHERE id=$1", 1)
	if err != nil {
		t.Fatalf("One error: %v", err)
	}
	if got.ID != 1 || got.Name != "alpha" {
		t.Fatalf("One = %+v", got)
	}
	if !q.rows.closed {
		t.Fatalf("rows not closed")
	}

	// no rows -> ErrNotFound
	q = &memQ{rows: &memRows{}}
	if _, err := One(context.Background(), q, scanPair, "SELECT ..."); !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// extra rows -> error
	q = &memQ{rows: &memRows{data: [][2]any{{1, "a"}, {2, "b"}}}}
	if _, err := One(context.Background(), q, scanPair, "SELECT ..."); err == nil {
		t.Fatalf("expected error for multiple rows")
	}

	// query error propagates
	boom := errors.New("boom")
	q = &memQ{queryErr: boom}
	if _, err := One(context.Background(), q, scanPair, "SELECT ..."); !errors.Is(err, boom) {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestMany(t *testing.T) {
	t.Parallel()

	q := &memQ{rows: &memRows{data: [][2]any{{1, "a"}, {2, "b"}, {3, "c"}}}}
	got, err := Many(context.Background(), q, scanPair, "SELECT id, name FROM t ORDER BY id")
	if err != nil {
		t.Fatalf("Many error: %v", err)
	}
	if len(got) != 3 || got[0].Name != "a" || got[2].ID != 3 {
		t.Fatalf("Many = %+v", got)
	}
	if !q.rows.closed {
		t.Fatalf("rows not closed")
	}

	// empty result is fine
	q = &memQ{rows: &memRows{}}
	got, err = Many(context.Background(), q, scanPair, "SELECT ...")
	if err != nil {
		t.Fatalf("Many empty error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Many empty = %+v", got)
	}

	// scan error stops iteration
	q = &memQ{rows: &memRows{data: [][2]any{{1, 2}}}} // name slot holds int; Scan into *string fails
	if _, err := Many(context.Background(), q, scanPair, "SELECT ..."); err == nil {
		t.Fatalf("expected scan error")
	}
}
