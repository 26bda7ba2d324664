// Package engine runs workflow definitions as pipeline instances.
//
// An Engine holds registered definitions and the instances created from them.
// Each instance executes in its own goroutine; stages run in topological order,
// or on a bounded worker pool when Config.MaxParallel is greater than one.
//
//	eng := engine.New(engine.Config{}, handlers)
//	if err := eng.Register(def); err != nil {
//	    return err
//	}
//	inst, err := eng.Execute(ctx, "orders", map[string]any{"date": "2024-06-15"}, "api")
//
// Stage failures do not surface as errors from Execute: the returned instance
// carries the terminal status and the fatal error, if any.
package engine
