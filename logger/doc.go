// Package logger wraps zerolog for flowkit.
//
// Every line carries the service name; component loggers add a component
// field, and orchestration code attaches workflow, instance, stage, schedule
// and job identifiers through the Field* keys so one run can be followed
// across the engine and the scheduler.
//
//	log := logger.Get("engine")
//	log.Info("stage completed", logger.Fields(logger.FieldStageID, "extract"))
package logger
