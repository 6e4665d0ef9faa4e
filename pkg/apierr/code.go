package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

// Query errors.
const (
	CodeWriteOperationForbidden Code = "WRITE_OPERATION_FORBIDDEN"
	CodeInvalidFilter           Code = "INVALID_FILTER"
	CodeQueryRequired           Code = "QUERY_REQUIRED"
	CodeQueryExecutionFailed    Code = "QUERY_EXECUTION_FAILED"
)

// Scope errors.
const (
	CodeScopeNotFound           Code = "SCOPE_NOT_FOUND"
	CodeInvalidScopeID          Code = "INVALID_SCOPE_ID"
	CodeCredentialUpdateFailed  Code = "CREDENTIAL_UPDATE_FAILED"
	CodeCredentialSealingFailed Code = "CREDENTIAL_SEALING_FAILED"
)

// Health errors.
const (
	CodeDatabaseNotReady Code = "DATABASE_NOT_READY"
)
