// Package billing owns the subscription lifecycle: the subscription
// repository read by the entitlement evaluator, a Redis read-through cache in
// front of it, and the service that applies plan changes coming from the
// billing provider.
//
// A tenant has at most one active subscription. Activate creates it or moves
// it to another tier, Cancel flips it to cancelled, and HandleWebhook turns
// verified Paddle notifications into one of the two:
//
//	repo := billing.NewPostgresRepository(pool)
//	cached := billing.NewCachedStore(repo, redisClient, time.Minute)
//	hooks, err := billing.NewPaddleWebhooks(cfg.Paddle)
//	if err != nil {
//	    return err
//	}
//	svc := billing.NewService(repo, catalog, hooks, billing.WithInvalidator(cached))
//	eval := entitlement.NewEvaluator(catalog, cached, entitlement.WithUsageCounter(store))
//
// Every lifecycle change invalidates the cached entry, so the next
// entitlement check sees the new tier.
package billing
