// Package logger builds the service's slog.Logger: JSON or text output,
// per-environment defaults, and attributes pulled from the request context
// (tenant id, request id) on every record.
//
//	log := logger.New(
//	    logger.WithEnvironment(logger.ParseEnvironment(cfg.Env), "stratplan"),
//	    logger.WithContextExtractors(tenant.LoggerExtractor()),
//	)
//	log.WarnContext(ctx, "plan limit reached", logger.Limit("max_objectives"), logger.Usage(3, 3))
package logger
