package errors

import "net/http"

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Input errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeValidationFailed indicates a definition failed structural validation.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodeMissingParameter indicates a required workflow parameter was not supplied.
	ErrCodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	// ErrCodeCronParse indicates a malformed cron expression.
	ErrCodeCronParse ErrorCode = "CRON_PARSE_ERROR"
	// ErrCodeCronNoMatch indicates a cron expression has no occurrence within the search horizon.
	ErrCodeCronNoMatch ErrorCode = "CRON_NO_MATCH"
)

// Execution errors
const (
	// ErrCodeStageExecution indicates a stage exhausted its attempts.
	ErrCodeStageExecution ErrorCode = "STAGE_EXECUTION_FAILED"
	// ErrCodePipelineExecution indicates a pipeline instance failed.
	ErrCodePipelineExecution ErrorCode = "PIPELINE_EXECUTION_FAILED"
	// ErrCodeJobExecution indicates a scheduled job exhausted its retries.
	ErrCodeJobExecution ErrorCode = "JOB_EXECUTION_FAILED"
	// ErrCodeTimeout indicates an operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeTokenExpired indicates the authentication token has expired.
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	// ErrCodeInvalidToken indicates the authentication token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type codeInfo struct {
	status    int
	retryable bool
}

var codeTable = map[ErrorCode]codeInfo{
	ErrCodeNotFound:          {http.StatusNotFound, false},
	ErrCodeConflict:          {http.StatusConflict, false},
	ErrCodeInvalidInput:      {http.StatusBadRequest, false},
	ErrCodeValidationFailed:  {http.StatusBadRequest, false},
	ErrCodeMissingParameter:  {http.StatusBadRequest, false},
	ErrCodeCronParse:         {http.StatusBadRequest, false},
	ErrCodeCronNoMatch:       {http.StatusUnprocessableEntity, false},
	ErrCodeStageExecution:    {http.StatusInternalServerError, true},
	ErrCodePipelineExecution: {http.StatusInternalServerError, false},
	ErrCodeJobExecution:      {http.StatusInternalServerError, true},
	ErrCodeTimeout:           {http.StatusGatewayTimeout, true},
	ErrCodeUnauthorized:      {http.StatusUnauthorized, false},
	ErrCodeTokenExpired:      {http.StatusUnauthorized, false},
	ErrCodeInvalidToken:      {http.StatusUnauthorized, false},
	ErrCodeInternal:          {http.StatusInternalServerError, false},
}

// IsRetryableCode reports whether failures with code are worth retrying.
func IsRetryableCode(code ErrorCode) bool {
	return codeTable[code].retryable
}

// StatusFor returns the HTTP status the admin API answers code with.
// Unknown codes map to 500.
func StatusFor(code ErrorCode) int {
	if info, ok := codeTable[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}
