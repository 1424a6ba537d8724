// Package entitlement evaluates subscription-tier limits and feature flags
// for tenants of the strategic-planning workspace.
//
// Key concepts:
//
//   - Tier: free, pro or enterprise
//   - LimitSet: caps (-1 means unlimited) and boolean feature flags of a tier
//   - Catalog: read-only plans loaded once at startup from a PlanSource
//   - UsageCounter: live, tenant-scoped row counts
//   - Evaluator: combines the tenant's active subscription, the catalog and
//     the counters into a Decision
//
// Basic usage:
//
//	catalog, err := entitlement.NewCatalog(ctx, entitlement.NewYAMLSource("configs/plans.yaml"))
//	if err != nil {
//	    // missing free plan or invalid caps: refuse to start
//	}
//
//	eval := entitlement.NewEvaluator(catalog, subscriptionStore,
//	    entitlement.WithUsageCounter(planningStore),
//	    entitlement.WithLogger(log),
//	)
//
//	d, err := eval.CanCreate(ctx, entitlement.LimitObjectives, tenantID, uuid.Nil)
//	switch {
//	case err != nil:
//	    // lookup or configuration failure: ask the user to retry
//	case !d.Allowed:
//	    // show an upgrade prompt naming d.Limit and d.UpgradeTier
//	}
//
// CanCreate is an advisory check: two concurrent requests can both pass it.
// Stores enforce the cap authoritatively by counting and inserting in one
// transaction and report *LimitError when the cap is hit.
package entitlement
