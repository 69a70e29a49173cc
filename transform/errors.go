package transform

import "errors"

var (
	// ErrMissingSource is returned when exclusion or root value function
	// needs stylesheet identifier and stylesheet does not have one.
	ErrMissingSource = errors.New("stylesheet has no source identifier")
	// ErrPattern wraps failures to compile or evaluate selector and exclude
	// patterns.
	ErrPattern = errors.New("invalid pattern")
	// ErrInvalidRootValue is returned when root value is not a positive number.
	ErrInvalidRootValue = errors.New("root value must be a positive number")
	// ErrInvalidOption is returned by Decode for options of unexpected type.
	ErrInvalidOption = errors.New("invalid option")
)
