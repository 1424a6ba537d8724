// Package validator builds field-level validation errors from small rules.
//
//	err := validator.Apply(
//	    validator.Required("title", in.Title),
//	    validator.Between("impact", in.Impact, 1, 10),
//	)
//	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
//	    // verrs.Fields() maps field names to messages
//	}
package validator
