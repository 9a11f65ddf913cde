package filterlist

import "errors"

var (
	// ErrReadOnly indicates a write to the system list.
	ErrReadOnly = errors.New("filter list is read-only")
	// ErrDuplicateName indicates a second filter with the same name in one
	// namespace.
	ErrDuplicateName = errors.New("filter name already defined")
	// ErrMissingName indicates a filter without a name.
	ErrMissingName = errors.New("filter name is required")
)
