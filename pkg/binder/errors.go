package binder

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrFailedToParseJSON    = errors.New("failed to parse JSON request body")
	ErrBodyTooLarge         = errors.New("request body too large")

	// ErrBinderNotApplicable lets a binder skip requests it does not handle.
	ErrBinderNotApplicable = errors.New("binder not applicable")
)
