package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrScopeNotFound is returned when the registry has no record for a scope.
var ErrScopeNotFound = errors.New("scope not found")

// ScopeRecord is the connection material stored for one tenant scope. A
// record with empty fields means the scope uses the shared default
// connection.
type ScopeRecord struct {
	ID                  uuid.UUID
	EndpointURI         string
	Username            string
	EncryptedCredential string
}

// Dedicated reports whether the record carries a complete set of dedicated
// connection fields. Anything less falls back to the default connection.
func (r ScopeRecord) Dedicated() bool {
	return r.EndpointURI != "" && r.Username != "" && r.EncryptedCredential != ""
}

// ScopeRegistry looks up connection material per scope. Implementations
// return ErrScopeNotFound (possibly wrapped) for unknown ids.
type ScopeRegistry interface {
	GetScopeConnection(ctx context.Context, scopeID uuid.UUID) (ScopeRecord, error)
}

// Decrypter unseals at-rest credentials.
type Decrypter interface {
	Decrypt(blob string) (string, error)
}

// Handle is a resolved per-scope connection. Handles are shared by all
// concurrent callers for the scope and live until invalidated.
type Handle struct {
	scopeID   uuid.UUID
	client    *Client
	dedicated bool
}

// Client returns the underlying graph client.
func (h *Handle) Client() *Client { return h.client }

// Dedicated reports whether this handle owns a scope-specific driver rather
// than sharing the process default.
func (h *Handle) Dedicated() bool { return h.dedicated }

// Resolver resolves and caches one connection handle per tenant scope,
// decrypting stored credentials on first use. It is an explicitly owned
// object constructed once at process start; tests use isolated instances.
type Resolver struct {
	mu      sync.Mutex
	handles map[uuid.UUID]*Handle

	def     *Handle
	scopes  ScopeRegistry
	secrets Decrypter
	opts    ConnectionOptions
	logger  *slog.Logger
}

// NewResolver builds a resolver around the shared default client.
func NewResolver(def *Client, scopes ScopeRegistry, secrets Decrypter, opts ConnectionOptions, logger *slog.Logger) *Resolver {
	return &Resolver{
		handles: make(map[uuid.UUID]*Handle),
		def:     &Handle{client: def},
		scopes:  scopes,
		secrets: secrets,
		opts:    opts,
		logger:  logger,
	}
}

// Resolve returns the connection handle for a scope, building and caching a
// dedicated one when the scope carries complete connection material. Decrypt
// or driver construction failures degrade to the shared default connection
// rather than failing the request.
func (r *Resolver) Resolve(ctx context.Context, scopeID uuid.UUID) (*Handle, error) {
	r.mu.Lock()
	if h, ok := r.handles[scopeID]; ok {
		r.mu.Unlock()
		return h, nil
	}
	r.mu.Unlock()

	record, err := r.scopes.GetScopeConnection(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	if !record.Dedicated() {
		return r.def, nil
	}

	if r.secrets == nil {
		r.logger.Warn("credential decryption unavailable, using default connection",
			slog.String("scope_id", scopeID.String()))
		return r.def, nil
	}
	password, err := r.secrets.Decrypt(record.EncryptedCredential)
	if err != nil {
		r.logger.Warn("failed to decrypt scope credential, using default connection",
			slog.String("scope_id", scopeID.String()),
			slog.String("error", err.Error()))
		return r.def, nil
	}

	client, err := NewClient(record.EndpointURI, record.Username, password, r.opts)
	if err != nil {
		r.logger.Warn("failed to build scope connection, using default connection",
			slog.String("scope_id", scopeID.String()),
			slog.String("error", err.Error()))
		return r.def, nil
	}

	h := &Handle{scopeID: scopeID, client: client, dedicated: true}

	// Atomic get-or-create: a concurrent first-resolve may have won the
	// race, in which case this construction is discarded.
	r.mu.Lock()
	if winner, ok := r.handles[scopeID]; ok {
		r.mu.Unlock()
		go client.Close(context.Background())
		return winner, nil
	}
	r.handles[scopeID] = h
	r.mu.Unlock()

	r.logger.Info("resolved dedicated scope connection",
		slog.String("scope_id", scopeID.String()))
	return h, nil
}

// Invalidate drops any cached handle for the scope so the next Resolve
// rebuilds it. Disposal is fire-and-forget; requests already holding the old
// handle finish on it.
func (r *Resolver) Invalidate(scopeID uuid.UUID) {
	r.mu.Lock()
	h, ok := r.handles[scopeID]
	if ok {
		delete(r.handles, scopeID)
	}
	r.mu.Unlock()

	if ok && h.dedicated {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			h.client.Close(ctx)
		}()
	}
}

// Close disposes every cached dedicated handle. The default client is owned
// by the caller.
func (r *Resolver) Close(ctx context.Context) {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[uuid.UUID]*Handle)
	r.mu.Unlock()

	for _, h := range handles {
		if h.dedicated {
			h.client.Close(ctx)
		}
	}
}
