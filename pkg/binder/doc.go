// Package binder decodes HTTP requests into typed values for handler.Wrap.
//
//	http.HandleFunc("/objectives", handler.Wrap(createObjective,
//	    handler.WithBinders[handler.Context, ObjectiveInput](binder.JSON()),
//	))
//
// Binders return ErrBinderNotApplicable for requests they do not handle;
// Wrap skips those and tries the next binder.
package binder
