package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

type fakeStream struct {
	records []*db.Record
	pos     int
	err     error
}

func (f *fakeStream) Next(ctx context.Context) bool {
	if f.pos >= len(f.records) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeStream) Record() *db.Record { return f.records[f.pos-1] }
func (f *fakeStream) Err() error         { return f.err }

func sequentialRecords(n int) []*db.Record {
	out := make([]*db.Record, n)
	for i := range out {
		out[i] = &db.Record{Keys: []string{"n.id"}, Values: []any{int64(i)}}
	}
	return out
}

func TestNormalizeCell(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int64", int64(42), int64(42)},
		{"float", 2.5, 2.5},
		{"string", "hello", "hello"},
		{"datetime to rfc3339", ts, "2024-03-01T12:30:00Z"},
		{"node with id property", dbtype.Node{Props: map[string]any{"id": "pat-1"}}, "pat-1"},
		{"node with numeric id property", dbtype.Node{Props: map[string]any{"id": int64(7)}}, "7"},
		{
			"node without id uses handle",
			dbtype.Node{ElementId: "4:abc:17", Labels: []string{"Patient"}},
			"Patient:4:abc:17",
		},
		{"relationship uses type", dbtype.Relationship{Type: "HAS_CLAIM"}, "HAS_CLAIM"},
		{"list flattens to json", []any{int64(1), "a", nil}, `[1,"a",null]`},
		{"map flattens to json", map[string]any{"k": int64(1)}, `{"k":1}`},
		{
			"nested composite normalized recursively",
			[]any{dbtype.Node{Props: map[string]any{"id": "x"}}},
			`["x"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeCell(tt.in).Value()
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("normalizeCell(%v) = %v (%T), want %v", tt.in, got, got, tt.want)
			}
		})
	}
}

func TestCellMarshalJSON(t *testing.T) {
	row := []Cell{
		{Kind: KindNull},
		{Kind: KindInt, Int: 7},
		{Kind: KindText, Text: "x"},
		{Kind: KindJSON, Text: `[1,2]`},
	}
	out, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Composites stay pre-serialized JSON text, not re-inflated structures.
	if want := `[null,7,"x","[1,2]"]`; string(out) != want {
		t.Errorf("marshal = %s, want %s", out, want)
	}
}

func TestIsUnknownFunction(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			"unknown function",
			&db.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Unknown function 'apoc.text.distance'"},
			true,
		},
		{
			"wrapped unknown function",
			fmt.Errorf("run query: %w", &db.Neo4jError{Msg: "Unknown function 'apoc.text.distance'"}),
			true,
		},
		{
			"other syntax error",
			&db.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Invalid input"},
			false,
		},
		{"plain error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUnknownFunction(tt.err); got != tt.want {
				t.Errorf("isUnknownFunction = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollectRows_TruncatesAtLimit(t *testing.T) {
	result, err := collectRows(context.Background(), &fakeStream{records: sequentialRecords(15)}, 10)
	if err != nil {
		t.Fatalf("collectRows: %v", err)
	}
	if result.RowCount != 10 {
		t.Errorf("rowCount = %d, want 10", result.RowCount)
	}
	if !result.Truncated {
		t.Error("truncated = false, want true")
	}
	if len(result.Rows) != 10 {
		t.Fatalf("row count = %d, want 10", len(result.Rows))
	}
	// Kept rows are the first 10 in backend order.
	for i, row := range result.Rows {
		if row[0].Int != int64(i) {
			t.Errorf("row %d = %v, want %d", i, row[0].Value(), i)
		}
	}
	if len(result.Columns) != 1 || result.Columns[0] != "n.id" {
		t.Errorf("columns = %v, want [n.id]", result.Columns)
	}
	if len(result.FirstRow) != 1 || result.FirstRow[0] != int64(0) {
		t.Errorf("firstRow = %v, want the raw first record", result.FirstRow)
	}
}

func TestCollectRows_ExactLimitNotTruncated(t *testing.T) {
	result, err := collectRows(context.Background(), &fakeStream{records: sequentialRecords(10)}, 10)
	if err != nil {
		t.Fatalf("collectRows: %v", err)
	}
	if result.RowCount != 10 || result.Truncated {
		t.Errorf("rowCount = %d truncated = %v, want 10 rows untruncated", result.RowCount, result.Truncated)
	}
}

func TestCollectRows_EmptyStream(t *testing.T) {
	result, err := collectRows(context.Background(), &fakeStream{}, 10)
	if err != nil {
		t.Fatalf("collectRows: %v", err)
	}
	if result.RowCount != 0 || result.Truncated || len(result.Columns) != 0 {
		t.Errorf("result = %+v, want empty untruncated result", result)
	}
}

func TestCollectRows_StreamError(t *testing.T) {
	stream := &fakeStream{records: sequentialRecords(2), err: errors.New("connection reset")}
	if _, err := collectRows(context.Background(), stream, 10); err == nil {
		t.Fatal("expected cursor error to surface")
	}
}

// stubbedExecutor returns an executor whose per-statement run step is a stub,
// resolving every scope to the shared default handle.
func stubbedExecutor(t *testing.T, run runFunc) (*Executor, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	r := testResolver(t, &stubRegistry{records: map[uuid.UUID]ScopeRecord{id: {ID: id}}}, nil)
	e := NewExecutor(r, 100, discard())
	e.run = run
	return e, id
}

func unknownFunctionErr() error {
	return &db.Neo4jError{
		Code: "Neo.ClientError.Statement.SyntaxError",
		Msg:  "Unknown function 'apoc.text.distance'",
	}
}

func TestExecutor_FuzzyFallbackRetriesWithContainment(t *testing.T) {
	var texts []string
	e, id := stubbedExecutor(t, func(ctx context.Context, _ neo4j.SessionWithContext, text string, params map[string]any, limit int) (*RowResult, error) {
		texts = append(texts, text)
		if len(texts) == 1 {
			return nil, unknownFunctionErr()
		}
		return &RowResult{Columns: []string{"n"}, RowCount: 1}, nil
	})

	stmt := Statement{
		Text:     "MATCH (n) WHERE apoc.text.distance(n.name, $p0) <= $p1 RETURN n",
		Fallback: &Statement{Text: "MATCH (n) WHERE toLower(toString(n.name)) CONTAINS toLower($p0) RETURN n"},
	}
	result, err := e.Run(context.Background(), id, stmt, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RowCount != 1 {
		t.Errorf("rowCount = %d, want the fallback result", result.RowCount)
	}
	if len(texts) != 2 {
		t.Fatalf("executions = %d, want primary then fallback", len(texts))
	}
	if texts[0] != stmt.Text || texts[1] != stmt.Fallback.Text {
		t.Errorf("execution order = %v", texts)
	}
}

func TestExecutor_FallbackRetriesAtMostOnce(t *testing.T) {
	calls := 0
	e, id := stubbedExecutor(t, func(ctx context.Context, _ neo4j.SessionWithContext, text string, params map[string]any, limit int) (*RowResult, error) {
		calls++
		return nil, unknownFunctionErr()
	})

	stmt := Statement{
		Text:     "MATCH (n) WHERE apoc.text.distance(n.name, $p0) <= $p1 RETURN n",
		Fallback: &Statement{Text: "MATCH (n) RETURN n"},
	}
	_, err := e.Run(context.Background(), id, stmt, 10)
	if err == nil {
		t.Fatal("expected execution error")
	}
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Errorf("error type = %T, want *ExecutionError", err)
	}
	if calls != 2 {
		t.Errorf("executions = %d, want exactly one retry", calls)
	}
}

func TestExecutor_NoRetryOnOtherErrors(t *testing.T) {
	calls := 0
	e, id := stubbedExecutor(t, func(ctx context.Context, _ neo4j.SessionWithContext, text string, params map[string]any, limit int) (*RowResult, error) {
		calls++
		return nil, errors.New("connection refused")
	})

	stmt := Statement{
		Text:     "MATCH (n) RETURN n",
		Fallback: &Statement{Text: "MATCH (n) RETURN n"},
	}
	if _, err := e.Run(context.Background(), id, stmt, 10); err == nil {
		t.Fatal("expected execution error")
	}
	if calls != 1 {
		t.Errorf("executions = %d, a non-function error must not trigger the fallback", calls)
	}
}

func TestExecutor_NoFallbackNoRetry(t *testing.T) {
	calls := 0
	e, id := stubbedExecutor(t, func(ctx context.Context, _ neo4j.SessionWithContext, text string, params map[string]any, limit int) (*RowResult, error) {
		calls++
		return nil, unknownFunctionErr()
	})

	if _, err := e.Run(context.Background(), id, Statement{Text: "MATCH (n) RETURN n"}, 10); err == nil {
		t.Fatal("expected execution error")
	}
	if calls != 1 {
		t.Errorf("executions = %d, want 1 without a fallback statement", calls)
	}
}

func TestExecutor_RunRejectsWriteQueries(t *testing.T) {
	r := testResolver(t, &stubRegistry{records: map[uuid.UUID]ScopeRecord{}}, nil)
	e := NewExecutor(r, 100, discard())

	_, err := e.Run(context.Background(), uuid.New(), Statement{Text: "MATCH (n) SET n.x = 1"}, 10)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		t.Error("validation failure must not be classified as an execution error")
	}
}
