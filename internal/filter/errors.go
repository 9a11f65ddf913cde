package filter

import "errors"

var (
	// ErrParamCount indicates a rule was given a different number of values
	// than it has labels.
	ErrParamCount = errors.New("rule parameter count mismatch")
	// ErrUnknownRule indicates a rule identifier the registry does not hold.
	ErrUnknownRule = errors.New("unknown rule")
	// ErrDuplicateRule indicates a second registration under the same key.
	ErrDuplicateRule = errors.New("rule already registered")
	// ErrCyclicReference indicates a filter that refers back to itself
	// through nested filter rules.
	ErrCyclicReference = errors.New("cyclic filter reference")
	// ErrFilterNotFound indicates a named filter that no list defines.
	ErrFilterNotFound = errors.New("filter not found")
	// ErrNotClonable indicates a rule that was not built by a Registry.
	ErrNotClonable = errors.New("rule cannot be cloned")
	// ErrAborted indicates the evaluation was cancelled. It wraps the
	// context error.
	ErrAborted = errors.New("filter evaluation aborted")
)
