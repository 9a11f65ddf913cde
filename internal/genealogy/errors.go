package genealogy

import "errors"

var (
	// ErrNotFound indicates a handle, ID or tag that the database does not hold.
	ErrNotFound = errors.New("not found")
	// ErrUnknownNamespace indicates a record type name outside Namespaces.
	ErrUnknownNamespace = errors.New("unknown namespace")
	// ErrInvalidDate indicates text that ParseDate cannot read.
	ErrInvalidDate = errors.New("invalid date")
)
