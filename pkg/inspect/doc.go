// Package inspect provides a development-time HTTP server for looking into
// a live scopeshare store: a JSON snapshot of every scope, a Prometheus
// metrics endpoint, and a WebSocket stream of change events.
//
// The inspector observes state, it never writes it: clients cannot push
// values through it, and nothing crosses process boundaries except the view.
//
//	cfg, _ := inspect.ConfigFromEnv()
//	srv := inspect.NewServer(store, cfg, logger)
//	_ = srv.Start()
//	defer srv.Shutdown(context.Background())
package inspect
