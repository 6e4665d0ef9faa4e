// Package metadata enriches parsed query columns with runtime-sampled types
// and tenant-curated semantic schema metadata.
package metadata

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/maraichr/graphlens/internal/cypher"
)

// SchemaField is one tenant-declared field of a schema entity.
type SchemaField struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// SchemaEntity is a tenant-declared entity layered onto a raw node label.
type SchemaEntity struct {
	Label  string        `json:"label"`
	Name   string        `json:"name"`
	Fields []SchemaField `json:"fields"`
}

// SchemaProvider returns the tenant-curated schema entities for a scope.
type SchemaProvider interface {
	SchemaEntities(ctx context.Context, scopeID uuid.UUID) ([]SchemaEntity, error)
}

// Enricher post-processes parsed column metadata in two ordered passes: a
// sample-row type inference pass, then a semantic-schema pass that
// unconditionally overwrites what it matches.
type Enricher struct {
	schema SchemaProvider
	logger *slog.Logger
}

// NewEnricher builds an enricher. A nil provider disables the schema pass.
func NewEnricher(schema SchemaProvider, logger *slog.Logger) *Enricher {
	return &Enricher{schema: schema, logger: logger}
}

// Enrich mutates md in place. sample holds the raw driver values of the
// first result row, aligned with md.Columns; nil skips the sampling pass.
func (e *Enricher) Enrich(ctx context.Context, scopeID uuid.UUID, md *cypher.QueryMetadata, sample []any) {
	if md == nil {
		return
	}
	e.sampleRowPass(md, sample)
	e.semanticSchemaPass(ctx, scopeID, md)
}

func (e *Enricher) sampleRowPass(md *cypher.QueryMetadata, sample []any) {
	if len(sample) == 0 {
		return
	}
	for i := range md.Columns {
		if i >= len(sample) {
			break
		}
		inferred := inferType(sample[i])
		if inferred == "" {
			continue
		}
		col := &md.Columns[i]
		col.DataType = inferred
		if col.Role == cypher.RoleAttribute && (inferred == "integer" || inferred == "float") {
			col.Role = cypher.RoleMetric
		}
	}
}

func (e *Enricher) semanticSchemaPass(ctx context.Context, scopeID uuid.UUID, md *cypher.QueryMetadata) {
	if e.schema == nil {
		return
	}
	entities, err := e.schema.SchemaEntities(ctx, scopeID)
	if err != nil {
		e.logger.Warn("semantic schema lookup failed, skipping enrichment pass",
			slog.String("scope_id", scopeID.String()),
			slog.String("error", err.Error()))
		return
	}
	if len(entities) == 0 {
		return
	}

	aliasLabels := make(map[string][]string, len(md.Nodes))
	for _, n := range md.Nodes {
		aliasLabels[n.Alias] = n.Labels
	}

	for i := range md.Columns {
		col := &md.Columns[i]
		if col.Alias == "" || col.Property == "" {
			continue
		}
		field, ok := lookupField(entities, aliasLabels[col.Alias], col.Property)
		if !ok {
			continue
		}
		col.DataType = mapFieldType(field.Type)
		col.Description = field.Description
		col.IsIdentifier = strings.EqualFold(field.Name, "id")
	}
}

// lookupField finds a declared field by label then property name, both
// case-insensitive.
func lookupField(entities []SchemaEntity, labels []string, property string) (SchemaField, bool) {
	for _, label := range labels {
		for _, entity := range entities {
			if !strings.EqualFold(entity.Label, label) {
				continue
			}
			for _, field := range entity.Fields {
				if strings.EqualFold(field.Name, property) {
					return field, true
				}
			}
		}
	}
	return SchemaField{}, false
}

// mapFieldType maps a declared type string onto the transport type set via
// fixed prefix rules.
func mapFieldType(declared string) string {
	t := strings.ToLower(strings.TrimSpace(declared))
	switch {
	case strings.HasPrefix(t, "integer"), strings.HasPrefix(t, "long"):
		return "integer"
	case strings.HasPrefix(t, "float"), strings.HasPrefix(t, "double"):
		return "float"
	case strings.HasPrefix(t, "boolean"):
		return "boolean"
	case strings.HasPrefix(t, "date"):
		return "date"
	case strings.HasPrefix(t, "list"):
		return "list"
	case strings.HasPrefix(t, "map"):
		return "map"
	default:
		return "string"
	}
}

// inferType maps a raw driver value onto the sampled type set. Null yields
// "" so the parser default survives.
func inferType(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64:
		return "integer"
	case float64:
		return "float"
	case time.Time, dbtype.Date, dbtype.LocalDateTime, dbtype.LocalTime, dbtype.Time, dbtype.Duration:
		return "date"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	default:
		return "string"
	}
}
