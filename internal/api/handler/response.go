package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/maraichr/graphlens/internal/cypher"
	"github.com/maraichr/graphlens/internal/graph"
	"github.com/maraichr/graphlens/pkg/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAPIError writes a structured error response and logs 5xx errors.
func writeAPIError(w http.ResponseWriter, logger *slog.Logger, e *apierr.Error) {
	if e.Status() >= 500 && logger != nil {
		logger.Error(e.Message(), slog.String("code", string(e.Code())), slog.String("error", e.Error()))
	}
	writeJSON(w, e.Status(), e.Response())
}

// mapQueryError translates the query layer's error classes into API errors:
// validation failures surface verbatim, unknown scopes map to not-found, and
// backend rejections map to an execution failure.
func mapQueryError(err error) *apierr.Error {
	if e, ok := apierr.As(err); ok {
		return e
	}
	var kw *cypher.WriteKeywordError
	if errors.As(err, &kw) {
		return apierr.WriteOperationForbidden(kw.Keyword)
	}
	var filter *cypher.InvalidFilterError
	if errors.As(err, &filter) {
		return apierr.InvalidFilter(filter.Error())
	}
	if errors.Is(err, graph.ErrScopeNotFound) {
		return apierr.ScopeNotFound()
	}
	var exec *graph.ExecutionError
	if errors.As(err, &exec) {
		return apierr.QueryExecutionFailed(exec.Unwrap())
	}
	return apierr.InternalError(err)
}
