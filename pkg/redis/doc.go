// Package redis connects to Redis with go-redis and exposes a readiness probe.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	probes := map[string]func(context.Context) error{"redis": redis.Healthcheck(client)}
//
// Config fields are read from the environment with caarlos0/env.
package redis
