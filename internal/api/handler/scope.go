package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/graphlens/internal/crypto"
	"github.com/maraichr/graphlens/internal/graph"
	"github.com/maraichr/graphlens/internal/store"
	"github.com/maraichr/graphlens/pkg/apierr"
)

// ScopeHandler manages per-scope connection credentials.
type ScopeHandler struct {
	logger   *slog.Logger
	store    *store.Store
	secrets  *crypto.Box
	resolver *graph.Resolver
}

func NewScopeHandler(logger *slog.Logger, s *store.Store, secrets *crypto.Box, resolver *graph.Resolver) *ScopeHandler {
	return &ScopeHandler{logger: logger, store: s, secrets: secrets, resolver: resolver}
}

type credentialsRequest struct {
	EndpointURI string `json:"endpointUri"`
	Username    string `json:"username"`
	Credential  string `json:"credential"`
}

// UpdateCredentials stores dedicated connection material for a scope,
// sealing the credential with the process key, then invalidates any cached
// connection so the next resolve rebuilds it. An all-empty body reverts the
// scope to the shared default connection.
// POST /api/v1/scopes/{scopeID}/credentials
func (h *ScopeHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	scopeID, err := uuid.Parse(chi.URLParam(r, "scopeID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidScopeID())
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	if req.EndpointURI == "" && req.Username == "" && req.Credential == "" {
		if err := h.store.ClearScopeCredentials(r.Context(), scopeID); err != nil {
			if apierr.IsNotFound(err) {
				writeAPIError(w, h.logger, apierr.ScopeNotFound())
				return
			}
			writeAPIError(w, h.logger, apierr.CredentialUpdateFailed(err))
			return
		}
		h.resolver.Invalidate(scopeID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return
	}

	if req.EndpointURI == "" || req.Username == "" || req.Credential == "" {
		writeAPIError(w, h.logger, apierr.New(apierr.CodeInvalidRequestBody, http.StatusBadRequest,
			"endpointUri, username and credential must all be provided"))
		return
	}

	if h.secrets == nil {
		writeAPIError(w, h.logger, apierr.CredentialSealingFailed(errors.New("credential key not configured")))
		return
	}
	sealed, err := h.secrets.Encrypt(req.Credential)
	if err != nil {
		writeAPIError(w, h.logger, apierr.CredentialSealingFailed(err))
		return
	}

	if err := h.store.UpdateScopeCredentials(r.Context(), scopeID, req.EndpointURI, req.Username, sealed); err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.ScopeNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.CredentialUpdateFailed(err))
		return
	}

	h.resolver.Invalidate(scopeID)
	h.logger.Info("scope credentials updated", slog.String("scope_id", scopeID.String()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
