package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/graphlens/internal/cypher"
	"github.com/maraichr/graphlens/internal/graph"
	"github.com/maraichr/graphlens/internal/metadata"
	"github.com/maraichr/graphlens/pkg/apierr"
)

// QueryRunner executes one read-only statement against a scope's connection.
type QueryRunner interface {
	Run(ctx context.Context, scopeID uuid.UUID, stmt graph.Statement, limit int) (*graph.RowResult, error)
}

type QueryHandler struct {
	logger       *slog.Logger
	runner       QueryRunner
	enricher     *metadata.Enricher
	defaultLimit int
}

func NewQueryHandler(logger *slog.Logger, runner QueryRunner, enricher *metadata.Enricher, defaultLimit int) *QueryHandler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &QueryHandler{logger: logger, runner: runner, enricher: enricher, defaultLimit: defaultLimit}
}

type queryRequest struct {
	// Cypher is raw query text; takes precedence over Filter.
	Cypher string         `json:"cypher,omitempty"`
	Params map[string]any `json:"params,omitempty"`

	// Filter compiles into a WHERE clause against Alias within Match.
	Filter *cypher.FilterGroup `json:"filter,omitempty"`
	Match  string              `json:"match,omitempty"`
	Alias  string              `json:"alias,omitempty"`
	Return string              `json:"return,omitempty"`

	Limit           int  `json:"limit,omitempty"`
	IncludeMetadata bool `json:"includeMetadata,omitempty"`
}

type queryResponse struct {
	Columns   []string              `json:"columns"`
	Rows      [][]graph.Cell        `json:"rows"`
	RowCount  int                   `json:"rowCount"`
	Truncated bool                  `json:"truncated"`
	Metadata  *cypher.QueryMetadata `json:"metadata,omitempty"`
}

// Execute runs raw or filter-compiled Cypher against a scope.
// POST /api/v1/scopes/{scopeID}/query
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	scopeID, err := uuid.Parse(chi.URLParam(r, "scopeID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidScopeID())
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	stmt, apiErr := buildStatement(&req)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = h.defaultLimit
	}

	result, err := h.runner.Run(r.Context(), scopeID, stmt, limit)
	if err != nil {
		writeAPIError(w, h.logger, mapQueryError(err))
		return
	}

	resp := queryResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
	}
	if req.IncludeMetadata {
		md := cypher.ParseMetadata(stmt.Text, result.Columns)
		if h.enricher != nil {
			h.enricher.Enrich(r.Context(), scopeID, md, result.FirstRow)
		}
		resp.Metadata = md
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildStatement turns a request into an executable statement: raw Cypher
// passes through with its pre-supplied parameters, a filter tree compiles to
// a full query. A filter whose compilation used the string-distance function
// also gets a containment fallback statement.
func buildStatement(req *queryRequest) (graph.Statement, *apierr.Error) {
	if strings.TrimSpace(req.Cypher) != "" {
		return graph.Statement{Text: req.Cypher, Params: req.Params}, nil
	}
	if req.Filter == nil {
		return graph.Statement{}, apierr.QueryRequired()
	}

	alias := req.Alias
	if alias == "" {
		alias = "n"
	}

	primary, err := cypher.CompileFilter(req.Filter, alias)
	if err != nil {
		return graph.Statement{}, mapQueryError(err)
	}
	stmt := graph.Statement{
		Text:   assembleFilterQuery(req, alias, primary.Clause),
		Params: primary.Params,
	}
	if primary.UsesDistance {
		fallback, err := cypher.CompileFilterFallback(req.Filter, alias)
		if err != nil {
			return graph.Statement{}, mapQueryError(err)
		}
		stmt.Fallback = &graph.Statement{
			Text:   assembleFilterQuery(req, alias, fallback.Clause),
			Params: fallback.Params,
		}
	}
	return stmt, nil
}

func assembleFilterQuery(req *queryRequest, alias, clause string) string {
	match := strings.TrimSpace(req.Match)
	if match == "" {
		match = "MATCH (" + cypher.EscapeIdentifier(alias) + ")"
	}
	ret := strings.TrimSpace(req.Return)
	if ret == "" {
		ret = "RETURN " + cypher.EscapeIdentifier(alias)
	}
	if clause == "" {
		return match + " " + ret
	}
	return match + " WHERE " + clause + " " + ret
}
