package metadata

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// CachedSchemaProvider is a read-through valkey cache in front of a
// SchemaProvider. Schema entities change rarely relative to query volume, so
// a short TTL keeps the registry load flat without staleness complaints.
type CachedSchemaProvider struct {
	inner  SchemaProvider
	client valkey.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSchemaProvider wraps inner with a valkey cache.
func NewCachedSchemaProvider(inner SchemaProvider, client valkey.Client, ttl time.Duration, logger *slog.Logger) *CachedSchemaProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSchemaProvider{inner: inner, client: client, ttl: ttl, logger: logger}
}

func schemaCacheKey(scopeID uuid.UUID) string {
	return "graphlens:schema:" + scopeID.String()
}

// SchemaEntities returns cached entities, falling through to the inner
// provider on miss or cache error. Cache failures never fail the lookup.
func (p *CachedSchemaProvider) SchemaEntities(ctx context.Context, scopeID uuid.UUID) ([]SchemaEntity, error) {
	key := schemaCacheKey(scopeID)

	resp := p.client.Do(ctx, p.client.B().Get().Key(key).Build())
	if data, err := resp.AsBytes(); err == nil {
		var entities []SchemaEntity
		if err := json.Unmarshal(data, &entities); err == nil {
			return entities, nil
		}
		p.logger.Warn("discarding corrupt schema cache entry", slog.String("key", key))
	} else if !valkey.IsValkeyNil(err) {
		p.logger.Warn("schema cache read failed", slog.String("error", err.Error()))
	}

	entities, err := p.inner.SchemaEntities(ctx, scopeID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entities); err == nil {
		setResp := p.client.Do(ctx, p.client.B().Set().Key(key).Value(string(data)).Ex(p.ttl).Build())
		if err := setResp.Error(); err != nil {
			p.logger.Warn("schema cache write failed", slog.String("error", err.Error()))
		}
	}
	return entities, nil
}

// Invalidate drops the cached entities for a scope, e.g. after a tenant
// edits its semantic schema.
func (p *CachedSchemaProvider) Invalidate(ctx context.Context, scopeID uuid.UUID) {
	p.client.Do(ctx, p.client.B().Del().Key(schemaCacheKey(scopeID)).Build())
}
