package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Query ---

func WriteOperationForbidden(keyword string) *Error {
	return New(CodeWriteOperationForbidden, http.StatusBadRequest,
		"Query contains forbidden write operation: "+keyword)
}

func InvalidFilter(detail string) *Error {
	return New(CodeInvalidFilter, http.StatusBadRequest, "Invalid filter: "+detail)
}

func QueryRequired() *Error {
	return New(CodeQueryRequired, http.StatusBadRequest, "Either cypher text or a filter is required")
}

func QueryExecutionFailed(cause error) *Error {
	return Wrap(CodeQueryExecutionFailed, http.StatusBadGateway, "Query execution failed", cause)
}

// --- Scope ---

func ScopeNotFound() *Error {
	return New(CodeScopeNotFound, http.StatusNotFound, "Scope not found")
}

func InvalidScopeID() *Error {
	return New(CodeInvalidScopeID, http.StatusBadRequest, "Invalid scope ID")
}

func CredentialUpdateFailed(cause error) *Error {
	return Wrap(CodeCredentialUpdateFailed, http.StatusInternalServerError, "Failed to update scope credentials", cause)
}

func CredentialSealingFailed(cause error) *Error {
	return Wrap(CodeCredentialSealingFailed, http.StatusInternalServerError, "Failed to seal scope credential", cause)
}

// --- Health ---

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "Database not ready")
}
