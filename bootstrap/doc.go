// Package bootstrap runs a flowkit process: it validates the typed config,
// initializes logging, starts registered components in order, runs lifecycle
// hooks, blocks until a signal or context cancellation and shuts down within
// a graceful timeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	app.RegisterComponent(orch)
//	app.RegisterComponent(httpServer)
//	return app.Run(ctx)
package bootstrap
