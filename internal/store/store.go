package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maraichr/graphlens/internal/graph"
	"github.com/maraichr/graphlens/internal/metadata"
	"github.com/maraichr/graphlens/internal/store/postgres"
)

// Store is the facade over the relational side: scope registry and semantic
// schema. It implements graph.ScopeRegistry and metadata.SchemaProvider.
type Store struct {
	*postgres.Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: postgres.New(pool),
		pool:    pool,
	}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) WithTx(ctx context.Context, fn func(*postgres.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetScopeConnection implements graph.ScopeRegistry.
func (s *Store) GetScopeConnection(ctx context.Context, scopeID uuid.UUID) (graph.ScopeRecord, error) {
	scope, err := s.GetScope(ctx, scopeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return graph.ScopeRecord{}, fmt.Errorf("scope %s: %w", scopeID, graph.ErrScopeNotFound)
		}
		return graph.ScopeRecord{}, fmt.Errorf("look up scope %s: %w", scopeID, err)
	}
	return graph.ScopeRecord{
		ID:                  scope.ID,
		EndpointURI:         scope.EndpointURI,
		Username:            scope.Username,
		EncryptedCredential: scope.EncryptedCredential,
	}, nil
}

// SchemaEntities implements metadata.SchemaProvider by joining the entity
// and field tables for a scope.
func (s *Store) SchemaEntities(ctx context.Context, scopeID uuid.UUID) ([]metadata.SchemaEntity, error) {
	entityRows, err := s.ListSchemaEntities(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list schema entities: %w", err)
	}
	if len(entityRows) == 0 {
		return nil, nil
	}
	fieldRows, err := s.ListSchemaFields(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list schema fields: %w", err)
	}

	fieldsByEntity := make(map[uuid.UUID][]metadata.SchemaField, len(entityRows))
	for _, f := range fieldRows {
		fieldsByEntity[f.EntityID] = append(fieldsByEntity[f.EntityID], metadata.SchemaField{
			Name:        f.Name,
			Description: f.Description,
			Type:        f.Type,
		})
	}

	entities := make([]metadata.SchemaEntity, 0, len(entityRows))
	for _, e := range entityRows {
		entities = append(entities, metadata.SchemaEntity{
			Label:  e.Label,
			Name:   e.Name,
			Fields: fieldsByEntity[e.ID],
		})
	}
	return entities, nil
}
