// Package httpserver runs an http.Server with graceful shutdown and
// exposes liveness and readiness handlers.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//	    return err
//	}
//
// Run blocks until ctx is cancelled or the process receives SIGINT or
// SIGTERM. Errors are wrapped with ErrStart and ErrShutdown.
//
// ReadinessHandler runs named probes such as pg.Healthcheck and
// redis.Healthcheck and reports each result:
//
//	{"status": "unavailable", "checks": {"postgres": "ok", "redis": "unavailable"}}
package httpserver
