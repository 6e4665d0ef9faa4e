package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by queries; satisfied by both pools and
// transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds hand-written queries against the relational store.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Scope is one tenant-owned logical graph dataset (ontology). Connection
// fields are empty when the scope uses the tenant default connection.
type Scope struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	Name                string
	EndpointURI         string
	Username            string
	EncryptedCredential string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// GetScope returns one scope record. pgx.ErrNoRows surfaces for unknown ids.
func (q *Queries) GetScope(ctx context.Context, id uuid.UUID) (*Scope, error) {
	row := q.db.QueryRow(ctx,
		`SELECT id, tenant_id, name,
		        COALESCE(endpoint_uri, ''), COALESCE(username, ''), COALESCE(encrypted_credential, ''),
		        created_at, updated_at
		 FROM ontology_scopes
		 WHERE id = $1`,
		id)

	var s Scope
	if err := row.Scan(&s.ID, &s.TenantID, &s.Name,
		&s.EndpointURI, &s.Username, &s.EncryptedCredential,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateScopeCredentials stores dedicated connection material for a scope.
// The credential must already be encrypted.
func (q *Queries) UpdateScopeCredentials(ctx context.Context, id uuid.UUID, endpointURI, username, encryptedCredential string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE ontology_scopes
		 SET endpoint_uri = $2, username = $3, encrypted_credential = $4, updated_at = now()
		 WHERE id = $1`,
		id, endpointURI, username, encryptedCredential)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ClearScopeCredentials reverts a scope to the shared default connection.
func (q *Queries) ClearScopeCredentials(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE ontology_scopes
		 SET endpoint_uri = NULL, username = NULL, encrypted_credential = NULL, updated_at = now()
		 WHERE id = $1`,
		id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
