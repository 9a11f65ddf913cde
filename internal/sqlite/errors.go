package sqlite

import (
	"errors"
	"strings"
)

// ErrDuplicate indicates a unique constraint rejected a write.
var ErrDuplicate = errors.New("duplicate entry")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
