// Package orchestrator ties the pipeline engine to the job scheduler.
//
// The orchestrator is the scheduler's job executor: a firing schedule starts
// an instance of its workflow with the schedule parameters overlaid by the
// job's, the job records the instance id, and an instance that fails or is
// cancelled fails the attempt so schedule retries apply.
//
// Engine and scheduler outcomes are published to an optional EventSink as
// pipeline.completed, pipeline.failed, stage.completed, job.completed and
// job.failed events on the topics pipeline:<workflow> and job:<schedule>.
package orchestrator
