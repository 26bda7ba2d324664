// Package validation provides the two validation styles flowkit uses:
// struct tag validation of workflow definitions (go-playground/validator) and
// a fluent collector for schedules and API input.
//
//	if fields := validation.StructFields(def); len(fields) > 0 { ... }
//
//	v := validation.New()
//	v.Required("workflow_id", s.WorkflowID).Min("max_retries", s.MaxRetries, 0)
//	if err := v.Validate(); err != nil { ... }
package validation
