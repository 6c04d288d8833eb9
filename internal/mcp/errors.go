package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/hq/internal/domain/budget"
	"github.com/rpggio/hq/internal/domain/project"
	"github.com/rpggio/hq/internal/domain/thought"
	"github.com/rpggio/hq/internal/remote"
)

// APIError is the body of a failed tool call.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to tool error codes. Unknown errors become
// REMOTE_ERROR.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, thought.ErrEmptyContent):
		return &APIError{Code: "EMPTY_CONTENT", Message: err.Error(), RecoveryHint: "Provide non-blank content"}
	case errors.Is(err, project.ErrProjectNotFound), errors.Is(err, remote.ErrNotFound), errors.Is(err, errUnknownID):
		return &APIError{Code: "NOT_FOUND", Message: err.Error(), RecoveryHint: "List records to find a valid id"}
	case errors.Is(err, budget.ErrInvalidAmount):
		return &APIError{Code: "INVALID_AMOUNT", Message: err.Error(), RecoveryHint: "Amounts are positive decimals such as 12.50"}
	case errors.Is(err, budget.ErrInvalidLimit):
		return &APIError{Code: "INVALID_LIMIT", Message: err.Error(), RecoveryHint: "Limits are positive and per expense category"}
	case errors.Is(err, budget.ErrInvalidInput), errors.Is(err, project.ErrInvalidInput), errors.Is(err, errInvalidArgument):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return &APIError{Code: "REMOTE_ERROR", Message: err.Error(), RecoveryHint: "The local view may be stale until the next load"}
	}
}
