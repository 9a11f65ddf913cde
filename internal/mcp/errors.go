package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/filterlist"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. The order matters: an
// invalid parameter count is also an invalid input.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, filter.ErrParamCount):
		return &APIError{Code: "PARAM_COUNT", Message: err.Error(), RecoveryHint: "Pass one value per rule label; see list_rules"}
	case errors.Is(err, filter.ErrUnknownRule):
		return &APIError{Code: "UNKNOWN_RULE", Message: err.Error(), RecoveryHint: "Call list_rules for the record type"}
	case errors.Is(err, query.ErrFilterNotFound):
		return &APIError{Code: "FILTER_NOT_FOUND", Message: err.Error(), RecoveryHint: "Call list_filters to see defined names"}
	case errors.Is(err, query.ErrSystemFilter), errors.Is(err, filterlist.ErrReadOnly):
		return &APIError{Code: "READ_ONLY", Message: err.Error(), RecoveryHint: "Save under a different name"}
	case errors.Is(err, filter.ErrCyclicReference):
		return &APIError{Code: "CYCLIC_REFERENCE", Message: err.Error(), RecoveryHint: "Remove one of the nested filter references"}
	case errors.Is(err, filter.ErrAborted):
		return &APIError{Code: "ABORTED", Message: "evaluation cancelled"}
	case errors.Is(err, query.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}

// toolError converts a service error into the error a tool handler returns.
// The SDK reports it to the client as a tool result with IsError set.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
