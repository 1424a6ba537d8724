// Package handler provides typed JSON HTTP handlers.
//
// A HandlerFunc receives a Context and a request value bound by the
// configured binders, and returns a Response:
//
//	func getDecision(ctx handler.Context, _ struct{}) handler.Response {
//	    d, err := eval.CanCreate(ctx, limit, tenantID, uuid.Nil)
//	    if err != nil {
//	        return handler.JSONError(err)
//	    }
//	    return handler.JSON(d)
//	}
//
//	r.Get("/decision", handler.Wrap(getDecision))
//
// Every JSON body uses the same envelope:
//
//	{"data": ..., "meta": ..., "error": {"code": "...", "message": "...", "details": ...}}
//
// JSONError maps validator.ValidationErrors to 422, binder failures to 400
// or 415 and HTTPError to its own status. Other errors become an opaque 500;
// callers with domain errors map them to an ErrorDetail first.
//
// Decorators wrap a HandlerFunc for cross-cutting concerns and are applied
// outermost first. NewErrorHandler logs and renders binding and render
// failures with the request id attached.
package handler
