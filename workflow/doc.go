// Package workflow holds the flowkit data model: workflow definitions and
// their stages, pipeline instances, schedules and jobs. It also provides the
// YAML definition loader, the stage handler registry and handler middleware.
package workflow
