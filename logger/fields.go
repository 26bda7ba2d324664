package logger

// Field keys shared across packages so log lines about the same workflow,
// instance or job can be joined.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldStatus    = "status"
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldOperation = "operation"

	FieldWorkflowID = "workflow_id"
	FieldInstanceID = "instance_id"
	FieldStageID    = "stage_id"
	FieldStageType  = "stage_type"
	FieldScheduleID = "schedule_id"
	FieldJobID      = "job_id"
	FieldAttempt    = "attempt"
	FieldTrigger    = "triggered_by"
)

// Fields pairs up kvs into a field map. Non-string keys and a trailing
// unpaired key are skipped.
//
//	log.Info("stage done", logger.Fields(logger.FieldStageID, "load", "rows", 42))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 1; i < len(kvs); i += 2 {
		if key, ok := kvs[i-1].(string); ok {
			m[key] = kvs[i]
		}
	}
	return m
}

// MergeWithError sets the error field on fields, allocating it when nil.
func MergeWithError(fields map[string]any, err error) map[string]any {
	if fields == nil {
		fields = map[string]any{}
	}
	fields[FieldError] = err.Error()
	return fields
}
