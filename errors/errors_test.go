package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeJobExecution, "job failed")
	if !err.Retryable {
		t.Error("JOB_EXECUTION_FAILED should be retryable")
	}
}

func TestAppError_NotFound(t *testing.T) {
	err := NotFound("workflow", "etl")
	if err.Details["resource"] != "workflow" || err.Details["id"] != "etl" {
		t.Errorf("unexpected details: %v", err.Details)
	}
	if !strings.Contains(err.Message, `"etl"`) {
		t.Errorf("expected id in message, got %q", err.Message)
	}
	if _, ok := NotFound("workflow", "").Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := Conflict("instance is not running")
	if err.Error() != "CONFLICT: instance is not running" {
		t.Errorf("unexpected error string %q", err.Error())
	}
	wrapped := Internal(fmt.Errorf("boom"))
	if !strings.Contains(wrapped.Error(), "cause: boom") {
		t.Errorf("expected cause in error string, got %q", wrapped.Error())
	}
}

func TestMissingParameter(t *testing.T) {
	err := MissingParameter("etl", "date")
	if err.Code != ErrCodeMissingParameter {
		t.Fatalf("expected MISSING_PARAMETER, got %s", err.Code)
	}
	if err.Details["parameter"] != "date" {
		t.Errorf("expected parameter detail, got %v", err.Details)
	}
}

func TestPipelineExecution_UsesStageMessage(t *testing.T) {
	stageErr := StageExecution("load", 3, fmt.Errorf("disk full"))
	err := PipelineExecution("inst-1", stageErr)
	if err.Message != stageErr.Message {
		t.Errorf("expected stage message %q, got %q", stageErr.Message, err.Message)
	}
	if !HasCode(err, ErrCodeStageExecution) {
		t.Error("expected wrapped stage error to be detectable")
	}
	if !HasCode(err, ErrCodePipelineExecution) {
		t.Error("expected outer code to be detectable")
	}
}

func TestHasCode_PlainError(t *testing.T) {
	if HasCode(fmt.Errorf("plain"), ErrCodeNotFound) {
		t.Error("plain errors carry no code")
	}
	if HasCode(nil, ErrCodeNotFound) {
		t.Error("nil carries no code")
	}
	wrapped := fmt.Errorf("lookup: %w", NotFound("schedule", "s1"))
	if !HasCode(wrapped, ErrCodeNotFound) {
		t.Error("expected code through fmt wrapping")
	}
}

func TestCronErrors(t *testing.T) {
	if err := CronParse("* *", "expected 5 fields"); err.Code != ErrCodeCronParse {
		t.Errorf("expected CRON_PARSE_ERROR, got %s", err.Code)
	}
	if err := CronNoMatch("0 0 31 2 *"); err.Code != ErrCodeCronNoMatch {
		t.Errorf("expected CRON_NO_MATCH, got %s", err.Code)
	}
}

func TestAsAppError(t *testing.T) {
	err := fmt.Errorf("wrap: %w", ValidationFailed("wf", nil))
	app, ok := AsAppError(err)
	if !ok {
		t.Fatal("expected AppError")
	}
	if app.Code != ErrCodeValidationFailed {
		t.Errorf("expected VALIDATION_FAILED, got %s", app.Code)
	}
	if _, ok := AsAppError(stderrors.New("x")); ok {
		t.Error("plain error is not an AppError")
	}
}

func TestToResponse(t *testing.T) {
	resp := JobExecution("j1", 2, fmt.Errorf("exit 1")).ToResponse()
	if resp.Error.Code != ErrCodeJobExecution {
		t.Errorf("expected JOB_EXECUTION_FAILED, got %s", resp.Error.Code)
	}
	if resp.Error.Details["attempts"] != 2 {
		t.Errorf("expected attempts detail, got %v", resp.Error.Details)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeCronNoMatch, http.StatusUnprocessableEntity},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeTimeout, http.StatusGatewayTimeout},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := StatusFor(tc.code); got != tc.want {
			t.Errorf("StatusFor(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestInvalidInput_FieldDetail(t *testing.T) {
	err := InvalidInput("body", "unexpected EOF")
	if err.HTTPStatus != http.StatusBadRequest || err.Details["field"] != "body" {
		t.Fatalf("unexpected error %+v", err)
	}
	if !IsAppError(fmt.Errorf("ctx: %w", err)) {
		t.Fatal("expected wrapped AppError to be detected")
	}
	if InvalidInput("", "x").Details != nil {
		t.Fatal("expected no details without a field")
	}
}
