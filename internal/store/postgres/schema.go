package postgres

import (
	"context"

	"github.com/google/uuid"
)

// SchemaEntityRow is one declared entity with its fields, as stored.
type SchemaEntityRow struct {
	ID    uuid.UUID
	Label string
	Name  string
}

// SchemaFieldRow is one declared field of an entity.
type SchemaFieldRow struct {
	EntityID    uuid.UUID
	Name        string
	Description string
	Type        string
}

// ListSchemaEntities returns the declared entities for a scope.
func (q *Queries) ListSchemaEntities(ctx context.Context, scopeID uuid.UUID) ([]SchemaEntityRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, label, name
		 FROM schema_entities
		 WHERE scope_id = $1
		 ORDER BY label`,
		scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SchemaEntityRow
	for rows.Next() {
		var e SchemaEntityRow
		if err := rows.Scan(&e.ID, &e.Label, &e.Name); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// ListSchemaFields returns all declared fields for a scope's entities in one
// round trip, keyed by entity id on the caller side.
func (q *Queries) ListSchemaFields(ctx context.Context, scopeID uuid.UUID) ([]SchemaFieldRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT f.entity_id, f.name, COALESCE(f.description, ''), COALESCE(f.type, '')
		 FROM schema_fields f
		 JOIN schema_entities e ON e.id = f.entity_id
		 WHERE e.scope_id = $1
		 ORDER BY f.entity_id, f.name`,
		scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SchemaFieldRow
	for rows.Next() {
		var f SchemaFieldRow
		if err := rows.Scan(&f.EntityID, &f.Name, &f.Description, &f.Type); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}
