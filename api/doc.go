// Package api is the flowkit admin REST API: workflow registration and
// execution, instance lifecycle, schedules, jobs, event triggers and the
// lifecycle event stream, mounted under /api/v1 on the server's gin engine.
//
// Success responses use the {"data": ...} envelope; failures carry the
// AppError body and status.
package api
