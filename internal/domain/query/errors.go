package query

import "errors"

var (
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid query input")
	// ErrFilterNotFound indicates no list defines the named filter.
	ErrFilterNotFound = errors.New("filter not found")
	// ErrSystemFilter indicates an attempt to change or shadow a system filter.
	ErrSystemFilter = errors.New("system filters are read-only")
)
