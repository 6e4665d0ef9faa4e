package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/graphlens/internal/cypher"
	"github.com/maraichr/graphlens/internal/graph"
	"github.com/maraichr/graphlens/pkg/apierr"
)

type stubRunner struct {
	lastStmt  graph.Statement
	lastLimit int
	result    *graph.RowResult
	err       error
}

func (s *stubRunner) Run(ctx context.Context, scopeID uuid.UUID, stmt graph.Statement, limit int) (*graph.RowResult, error) {
	s.lastStmt = stmt
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postScoped(t *testing.T, h http.HandlerFunc, scopeID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scopes/"+scopeID+"/query", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("scopeID", scopeID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierr.ErrorResponse {
	t.Helper()
	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestQueryHandler_Execute_InvalidScopeID(t *testing.T) {
	h := NewQueryHandler(discard(), &stubRunner{}, nil, 100)
	w := postScoped(t, h.Execute, "not-a-uuid", `{"cypher":"MATCH (n) RETURN n"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Code != apierr.CodeInvalidScopeID {
		t.Errorf("code = %s, want %s", resp.Error.Code, apierr.CodeInvalidScopeID)
	}
}

func TestQueryHandler_Execute_InvalidBody(t *testing.T) {
	h := NewQueryHandler(discard(), &stubRunner{}, nil, 100)
	w := postScoped(t, h.Execute, uuid.NewString(), "not json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Code != apierr.CodeInvalidRequestBody {
		t.Errorf("code = %s, want %s", resp.Error.Code, apierr.CodeInvalidRequestBody)
	}
}

func TestQueryHandler_Execute_RequiresQueryOrFilter(t *testing.T) {
	h := NewQueryHandler(discard(), &stubRunner{}, nil, 100)
	w := postScoped(t, h.Execute, uuid.NewString(), `{}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Code != apierr.CodeQueryRequired {
		t.Errorf("code = %s, want %s", resp.Error.Code, apierr.CodeQueryRequired)
	}
}

func TestQueryHandler_Execute_RawCypher(t *testing.T) {
	runner := &stubRunner{
		result: &graph.RowResult{
			Columns:  []string{"n.name"},
			Rows:     [][]graph.Cell{{{Kind: graph.KindText, Text: "Alice"}}},
			RowCount: 1,
		},
	}
	h := NewQueryHandler(discard(), runner, nil, 25)
	w := postScoped(t, h.Execute, uuid.NewString(),
		`{"cypher":"MATCH (n:Person) RETURN n.name","params":{"x":1}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if runner.lastStmt.Text != "MATCH (n:Person) RETURN n.name" {
		t.Errorf("statement text = %q", runner.lastStmt.Text)
	}
	if runner.lastLimit != 25 {
		t.Errorf("limit = %d, want default 25", runner.lastLimit)
	}

	var resp struct {
		Columns   []string `json:"columns"`
		Rows      [][]any  `json:"rows"`
		RowCount  int      `json:"rowCount"`
		Truncated bool     `json:"truncated"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RowCount != 1 || resp.Truncated {
		t.Errorf("response = %+v", resp)
	}
}

func TestQueryHandler_Execute_MapsErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apierr.Code
		wantHTTP int
	}{
		{"write keyword", &cypher.WriteKeywordError{Keyword: "SET"}, apierr.CodeWriteOperationForbidden, http.StatusBadRequest},
		{"scope not found", graph.ErrScopeNotFound, apierr.CodeScopeNotFound, http.StatusNotFound},
		{"execution failure", &graph.ExecutionError{Err: io.ErrUnexpectedEOF}, apierr.CodeQueryExecutionFailed, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewQueryHandler(discard(), &stubRunner{err: tt.err}, nil, 100)
			w := postScoped(t, h.Execute, uuid.NewString(), `{"cypher":"MATCH (n) RETURN n"}`)

			if w.Code != tt.wantHTTP {
				t.Errorf("status = %d, want %d", w.Code, tt.wantHTTP)
			}
			if resp := decodeError(t, w); resp.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestBuildStatement_FilterQuery(t *testing.T) {
	req := &queryRequest{
		Match: "MATCH (p:Patient)",
		Alias: "p",
		Filter: &cypher.FilterGroup{
			Operator: "AND",
			Conditions: []cypher.FilterCondition{
				{Property: "age", Operator: cypher.OpGte, Value: 65},
			},
		},
		Return: "RETURN p.id",
	}

	stmt, apiErr := buildStatement(req)
	if apiErr != nil {
		t.Fatalf("buildStatement: %v", apiErr)
	}
	want := "MATCH (p:Patient) WHERE `p`.`age` >= $p0 RETURN p.id"
	if stmt.Text != want {
		t.Errorf("text = %q, want %q", stmt.Text, want)
	}
	if stmt.Fallback != nil {
		t.Error("non-fuzzy filter must not carry a fallback statement")
	}
}

func TestBuildStatement_FuzzyFilterCarriesFallback(t *testing.T) {
	req := &queryRequest{
		Filter: &cypher.FilterGroup{
			Operator: "AND",
			Conditions: []cypher.FilterCondition{
				{Property: "name", Operator: cypher.OpEq, Value: "smith", Fuzzy: true},
			},
		},
	}

	stmt, apiErr := buildStatement(req)
	if apiErr != nil {
		t.Fatalf("buildStatement: %v", apiErr)
	}
	if !strings.Contains(stmt.Text, "apoc.text.distance") {
		t.Errorf("primary text = %q, want distance comparison", stmt.Text)
	}
	if stmt.Fallback == nil {
		t.Fatal("fuzzy filter must carry a fallback statement")
	}
	if !strings.Contains(stmt.Fallback.Text, "CONTAINS") {
		t.Errorf("fallback text = %q, want containment", stmt.Fallback.Text)
	}
}

func TestBuildStatement_EmptyFilterGroupOmitsWhere(t *testing.T) {
	req := &queryRequest{
		Match:  "MATCH (n:Claim)",
		Filter: &cypher.FilterGroup{Operator: "AND"},
	}
	stmt, apiErr := buildStatement(req)
	if apiErr != nil {
		t.Fatalf("buildStatement: %v", apiErr)
	}
	if strings.Contains(stmt.Text, "WHERE") {
		t.Errorf("text = %q, empty group must not render WHERE", stmt.Text)
	}
}

func TestBuildStatement_InvalidFilter(t *testing.T) {
	req := &queryRequest{
		Filter: &cypher.FilterGroup{
			Operator: "AND",
			Conditions: []cypher.FilterCondition{
				{Property: "x", Operator: "matches", Value: 1},
			},
		},
	}
	_, apiErr := buildStatement(req)
	if apiErr == nil {
		t.Fatal("expected filter error")
	}
	if apiErr.Code() != apierr.CodeInvalidFilter {
		t.Errorf("code = %s, want %s", apiErr.Code(), apierr.CodeInvalidFilter)
	}
}
