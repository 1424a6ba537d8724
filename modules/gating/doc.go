// Package gating is the HTTP surface in front of the entitlement evaluator.
//
// Creation routes call the planning service, which checks the tenant's plan
// before inserting. A denial is answered with 402 Payment Required and an
// upgrade prompt naming the limit or feature and the cheapest tier that
// lifts it:
//
//	{"error": {"code": "plan_limit_reached",
//	  "message": "You have reached the limit of 3 objectives on the Free plan. Upgrade to Pro to add more.",
//	  "details": {"limit": "max_objectives", "current": 3, "cap": 3, "tier": "free", "upgrade_tier": "pro", ...}}}
//
// Plan catalog defects and failed subscription or usage lookups are answered
// with 503 and code try_again, never with a plan-limit prompt.
//
// Every decision is counted in stratplan_entitlement_decisions_total.
package gating
