package errors

import stderrors "errors"

// ErrorResponse is the envelope the admin API writes for every failure.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse drops the cause and status and keeps what clients may see.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}}
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError finds the outermost AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var app *AppError
	if err == nil || !stderrors.As(err, &app) {
		return nil, false
	}
	return app, true
}

// HasCode reports whether any AppError in err's chain carries code, including
// AppErrors nested as the Cause of another.
func HasCode(err error, code ErrorCode) bool {
	for app, ok := AsAppError(err); ok; app, ok = AsAppError(app.Cause) {
		if app.Code == code {
			return true
		}
	}
	return false
}
