// Package scheduler decides when workflows run.
//
// A Scheduler holds schedules, evaluates their triggers on every tick and
// launches jobs through a JobExecutor. Cron, interval and dependency triggers
// fire on ticks; event triggers fire through Emit; manual and api triggers
// fire only through Trigger.
//
// Before a schedule fires it must pass its gates: concurrency limits, the
// global job bulkhead, and the outcome of each dependency's latest job.
package scheduler
