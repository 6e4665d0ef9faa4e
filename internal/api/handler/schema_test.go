package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/maraichr/graphlens/internal/cypher"
	"github.com/maraichr/graphlens/pkg/apierr"
)

func TestSchemaHandler_Discover(t *testing.T) {
	h := NewSchemaHandler(discard(), nil)
	body := `{"cypher":"MATCH (p:Patient)-[:HAS_CLAIM]->(c:Claim) RETURN p.id","columns":["p.id"]}`
	w := postScoped(t, h.Discover, uuid.NewString(), body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var md cypher.QueryMetadata
	if err := json.NewDecoder(w.Body).Decode(&md); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(md.Nodes) != 2 || len(md.Relationships) != 1 {
		t.Errorf("nodes = %d rels = %d, want 2 and 1", len(md.Nodes), len(md.Relationships))
	}
	if md.RowGrain != "One row per HAS_CLAIM match" {
		t.Errorf("rowGrain = %q", md.RowGrain)
	}
}

func TestSchemaHandler_Discover_RequiresCypher(t *testing.T) {
	h := NewSchemaHandler(discard(), nil)
	w := postScoped(t, h.Discover, uuid.NewString(), `{"columns":["x"]}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Code != apierr.CodeQueryRequired {
		t.Errorf("code = %s, want %s", resp.Error.Code, apierr.CodeQueryRequired)
	}
}

func TestSchemaHandler_Discover_InvalidScopeID(t *testing.T) {
	h := NewSchemaHandler(discard(), nil)
	w := postScoped(t, h.Discover, "nope", `{"cypher":"MATCH (n) RETURN n"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
