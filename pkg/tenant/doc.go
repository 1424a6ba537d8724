// Package tenant carries the tenant id of a request. The id is issued by the
// auth gateway and arrives in the X-Tenant-ID header; every usage count and
// subscription lookup is scoped by it.
//
//	r.Use(tenant.Middleware(tenant.NewHeaderResolver(""), tenant.WithSkipPaths("/webhooks")))
//	r.With(tenant.RequireTenant(nil)).Get("/entitlements", h)
package tenant
