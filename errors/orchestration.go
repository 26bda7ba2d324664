package errors

// ValidationFailed reports a workflow definition that did not pass DAG
// validation. The validation result is attached under the "result" detail.
func ValidationFailed(workflowID string, result any) *AppError {
	return Newf(ErrCodeValidationFailed, "workflow %q failed validation", workflowID).
		WithDetails(map[string]any{"workflow_id": workflowID, "result": result})
}

// MissingParameter reports a required parameter with neither a caller value
// nor a default.
func MissingParameter(workflowID, name string) *AppError {
	return Newf(ErrCodeMissingParameter, "missing required parameter %q", name).
		WithDetails(map[string]any{"workflow_id": workflowID, "parameter": name})
}

// StageExecution reports a stage whose final attempt failed.
func StageExecution(stageID string, attempts int, cause error) *AppError {
	return attemptsExhausted(ErrCodeStageExecution, "stage %q", stageID, attempts, cause).
		WithDetails(map[string]any{"stage_id": stageID, "attempts": attempts})
}

// JobExecution reports a job that failed on every attempt.
func JobExecution(jobID string, attempts int, cause error) *AppError {
	return attemptsExhausted(ErrCodeJobExecution, "job %s", jobID, attempts, cause).
		WithDetails(map[string]any{"job_id": jobID, "attempts": attempts})
}

func attemptsExhausted(code ErrorCode, subject, id string, attempts int, cause error) *AppError {
	err := Newf(code, subject+" failed after %d attempt(s)", id, attempts)
	if cause != nil {
		err.Message += ": " + cause.Error()
	}
	return err.WithCause(cause)
}

// PipelineExecution reports a pipeline instance that terminated as failed.
// When cause is an AppError its message is surfaced unchanged.
func PipelineExecution(instanceID string, cause error) *AppError {
	msg := "pipeline instance " + instanceID + " failed"
	if app, ok := AsAppError(cause); ok {
		msg = app.Message
	} else if cause != nil {
		msg = cause.Error()
	}
	return New(ErrCodePipelineExecution, msg).
		WithDetail("instance_id", instanceID).
		WithCause(cause)
}

// CronParse reports a malformed cron expression.
func CronParse(expr, reason string) *AppError {
	return Newf(ErrCodeCronParse, "invalid cron expression %q: %s", expr, reason).
		WithDetail("expression", expr)
}

// CronNoMatch reports a cron expression with no occurrence inside the search horizon.
func CronNoMatch(expr string) *AppError {
	return Newf(ErrCodeCronNoMatch, "cron expression %q has no occurrence within one year", expr).
		WithDetail("expression", expr)
}
