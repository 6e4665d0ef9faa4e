package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/maraichr/graphlens/internal/cypher"
)

// CellKind tags the closed set of transport-safe scalar kinds.
type CellKind uint8

const (
	KindNull CellKind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	// KindJSON holds a list or map value pre-serialized to JSON text;
	// composites never leave this layer as structured values.
	KindJSON
)

// Cell is one normalized result value. Exactly one field is meaningful for a
// given Kind.
type Cell struct {
	Kind  CellKind
	Bool  bool
	Int   int64
	Float float64
	Text  string
}

// Value returns the transport representation of the cell.
func (c Cell) Value() any {
	switch c.Kind {
	case KindBool:
		return c.Bool
	case KindInt:
		return c.Int
	case KindFloat:
		return c.Float
	case KindText, KindJSON:
		return c.Text
	default:
		return nil
	}
}

// MarshalJSON writes the transport scalar.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value())
}

// RowResult is the normalized outcome of one query execution.
type RowResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]Cell `json:"rows"`
	RowCount  int      `json:"rowCount"`
	Truncated bool     `json:"truncated"`

	// FirstRow holds the raw driver values of the first record, before
	// normalization, for the metadata type-sampling pass.
	FirstRow []any `json:"-"`
}

// Statement is one executable query plus its bound parameters. Fallback,
// when set, is tried once if the backend reports the string-distance
// function as unavailable.
type Statement struct {
	Text     string
	Params   map[string]any
	Fallback *Statement
}

// ExecutionError wraps a backend rejection or timeout so callers can
// distinguish it from validation and not-found failures.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return "query execution failed: " + e.Err.Error() }
func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor validates, runs, and normalizes read-only Cypher against the
// scope's resolved connection.
type Executor struct {
	resolver *Resolver
	logger   *slog.Logger
	maxRows  int
	run      runFunc
}

// runFunc executes one statement on an open session. Tests swap in a stub so
// the retry logic runs without a backend.
type runFunc func(ctx context.Context, session neo4j.SessionWithContext, text string, params map[string]any, limit int) (*RowResult, error)

// NewExecutor builds an executor. maxRows caps every execution regardless of
// the caller-requested limit.
func NewExecutor(resolver *Resolver, maxRows int, logger *slog.Logger) *Executor {
	if maxRows <= 0 {
		maxRows = 1000
	}
	e := &Executor{resolver: resolver, logger: logger, maxRows: maxRows}
	e.run = e.runOnce
	return e
}

// Run executes one read-only statement inside a single read transaction and
// returns at most limit rows in backend order. The row cap is enforced here
// even when the query text carries its own LIMIT; the effective cap is the
// minimum of the two.
func (e *Executor) Run(ctx context.Context, scopeID uuid.UUID, stmt Statement, limit int) (*RowResult, error) {
	if err := cypher.ValidateReadOnly(stmt.Text); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > e.maxRows {
		limit = e.maxRows
	}

	handle, err := e.resolver.Resolve(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	session := handle.Client().ReadSession(ctx)
	defer session.Close(ctx)

	start := time.Now()
	result, err := e.run(ctx, session, stmt.Text, stmt.Params, limit)
	if err != nil && stmt.Fallback != nil && isUnknownFunction(err) {
		// The distance extension is missing on this backend; retry once with
		// the containment rendering. One extra round trip per logical query.
		e.logger.Info("string-distance function unavailable, retrying with containment",
			slog.String("scope_id", scopeID.String()))
		result, err = e.run(ctx, session, stmt.Fallback.Text, stmt.Fallback.Params, limit)
	}
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}

	e.logger.Debug("query executed",
		slog.String("scope_id", scopeID.String()),
		slog.Int("rows", result.RowCount),
		slog.Bool("truncated", result.Truncated),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (e *Executor) runOnce(ctx context.Context, session neo4j.SessionWithContext, text string, params map[string]any, limit int) (*RowResult, error) {
	out, err := neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, text, params)
		if err != nil {
			return nil, err
		}
		return collectRows(ctx, records, limit)
	})
	if err != nil {
		return nil, err
	}
	return out.(*RowResult), nil
}

// recordStream is the subset of the driver result cursor the row collector
// reads.
type recordStream interface {
	Next(ctx context.Context) bool
	Record() *db.Record
	Err() error
}

// collectRows drains at most limit records from the cursor. The first record
// also supplies the column names and the raw sample row; one record past the
// limit marks the result truncated.
func collectRows(ctx context.Context, records recordStream, limit int) (*RowResult, error) {
	result := &RowResult{Columns: []string{}}
	for records.Next(ctx) {
		record := records.Record()
		if result.RowCount == 0 {
			result.Columns = record.Keys
			result.FirstRow = record.Values
		}
		if result.RowCount >= limit {
			result.Truncated = true
			break
		}
		row := make([]Cell, len(record.Values))
		for i, v := range record.Values {
			row[i] = normalizeCell(v)
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	if err := records.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isUnknownFunction classifies the backend error meaning "function not
// installed", the only error class that triggers the fuzzy fallback.
func isUnknownFunction(err error) bool {
	var neoErr *db.Neo4jError
	if !errors.As(err, &neoErr) {
		return false
	}
	msg := strings.ToLower(neoErr.Msg)
	return strings.Contains(msg, "unknown function") ||
		strings.Contains(msg, "there is no procedure") ||
		strings.Contains(msg, "not installed")
}

// normalizeCell collapses a backend-typed value into the closed Cell set:
// null, bool, int64 for all integer kinds, float64, canonical strings for
// temporals, id-or-handle for nodes, type name for relationships, and JSON
// text for lists and maps (recursively normalized first).
func normalizeCell(v any) Cell {
	switch val := v.(type) {
	case nil:
		return Cell{Kind: KindNull}
	case bool:
		return Cell{Kind: KindBool, Bool: val}
	case int64:
		return Cell{Kind: KindInt, Int: val}
	case int:
		return Cell{Kind: KindInt, Int: int64(val)}
	case float64:
		return Cell{Kind: KindFloat, Float: val}
	case string:
		return Cell{Kind: KindText, Text: val}
	case time.Time:
		return Cell{Kind: KindText, Text: val.Format(time.RFC3339)}
	case dbtype.Date:
		return Cell{Kind: KindText, Text: val.String()}
	case dbtype.LocalTime:
		return Cell{Kind: KindText, Text: val.String()}
	case dbtype.Time:
		return Cell{Kind: KindText, Text: val.String()}
	case dbtype.LocalDateTime:
		return Cell{Kind: KindText, Text: val.String()}
	case dbtype.Duration:
		return Cell{Kind: KindText, Text: val.String()}
	case dbtype.Node:
		if id, ok := val.Props["id"]; ok && id != nil {
			return Cell{Kind: KindText, Text: fmt.Sprint(id)}
		}
		if len(val.Labels) > 0 {
			return Cell{Kind: KindText, Text: strings.Join(val.Labels, ":") + ":" + val.ElementId}
		}
		return Cell{Kind: KindText, Text: val.ElementId}
	case dbtype.Relationship:
		return Cell{Kind: KindText, Text: val.Type}
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = normalizeCell(item).Value()
		}
		return jsonCell(items)
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = normalizeCell(item).Value()
		}
		return jsonCell(m)
	default:
		return Cell{Kind: KindText, Text: fmt.Sprint(v)}
	}
}

func jsonCell(v any) Cell {
	b, err := json.Marshal(v)
	if err != nil {
		return Cell{Kind: KindText, Text: fmt.Sprint(v)}
	}
	return Cell{Kind: KindJSON, Text: string(b)}
}
