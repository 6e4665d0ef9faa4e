package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/graphlens/internal/cypher"
	"github.com/maraichr/graphlens/internal/metadata"
	"github.com/maraichr/graphlens/pkg/apierr"
)

// SchemaHandler serves schema discovery: parse query text into graph shape
// metadata and enrich it with tenant-curated schema, without executing.
type SchemaHandler struct {
	logger   *slog.Logger
	enricher *metadata.Enricher
}

func NewSchemaHandler(logger *slog.Logger, enricher *metadata.Enricher) *SchemaHandler {
	return &SchemaHandler{logger: logger, enricher: enricher}
}

type schemaRequest struct {
	Cypher  string   `json:"cypher"`
	Columns []string `json:"columns,omitempty"`
}

// Discover parses Cypher text into pattern/node/relationship/column
// metadata.
// POST /api/v1/scopes/{scopeID}/metadata
func (h *SchemaHandler) Discover(w http.ResponseWriter, r *http.Request) {
	scopeID, err := uuid.Parse(chi.URLParam(r, "scopeID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidScopeID())
		return
	}

	var req schemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}
	if strings.TrimSpace(req.Cypher) == "" {
		writeAPIError(w, h.logger, apierr.QueryRequired())
		return
	}

	md := cypher.ParseMetadata(req.Cypher, req.Columns)
	if h.enricher != nil {
		h.enricher.Enrich(r.Context(), scopeID, md, nil)
	}
	writeJSON(w, http.StatusOK, md)
}
