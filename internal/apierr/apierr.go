// Package apierr maps domain errors to the short codes clients act on.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/inventory"
	"github.com/rpggio/tally/internal/domain/operator"
)

const (
	CodeAssetNotFound     = "ASSET_NOT_FOUND"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeItemNotFound      = "ITEM_NOT_FOUND"
	CodeTaskNotFound      = "TASK_NOT_FOUND"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotInScope        = "NOT_IN_SCOPE"
	CodeForbidden         = "FORBIDDEN"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeTransient         = "TRANSIENT"
	CodeInternal          = "INTERNAL"
)

// APIError is the error body returned to clients.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	Status       int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an APIError with the status that belongs to code.
func New(code, message string) *APIError {
	return &APIError{Code: code, Message: message, Status: statusFor(code)}
}

// Map converts an error into an APIError. Unknown errors become INTERNAL
// without exposing their text.
func Map(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var e *APIError
	switch {
	case errors.Is(err, asset.ErrAssetNotFound):
		e = &APIError{Code: CodeAssetNotFound, Message: "asset not found", RecoveryHint: "Check the code or register it as unexpected"}
	case errors.Is(err, inventory.ErrSessionNotFound):
		e = &APIError{Code: CodeSessionNotFound, Message: "session not found", RecoveryHint: "Check the session id"}
	case errors.Is(err, inventory.ErrItemNotFound):
		e = &APIError{Code: CodeItemNotFound, Message: "item not found", RecoveryHint: "List the session items"}
	case errors.Is(err, inventory.ErrTaskNotFound):
		e = &APIError{Code: CodeTaskNotFound, Message: "task not found", RecoveryHint: "List your assigned tasks"}
	case errors.Is(err, operator.ErrUserNotFound):
		e = &APIError{Code: CodeUserNotFound, Message: "user not found"}
	case errors.Is(err, inventory.ErrInvalidTransition):
		e = &APIError{Code: CodeInvalidTransition, Message: err.Error(), RecoveryHint: "Reload the session status"}
	case errors.Is(err, inventory.ErrNotInScope):
		e = &APIError{Code: CodeNotInScope, Message: err.Error()}
	case errors.Is(err, operator.ErrForbidden):
		e = &APIError{Code: CodeForbidden, Message: "permission denied"}
	case errors.Is(err, inventory.ErrInvalidInput),
		errors.Is(err, asset.ErrInvalidCode),
		errors.Is(err, asset.ErrInvalidScope),
		errors.Is(err, operator.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput):
		e = &APIError{Code: CodeInvalidInput, Message: err.Error()}
	case errors.Is(err, inventory.ErrTransient):
		e = &APIError{Code: CodeTransient, Message: "temporary conflict", RecoveryHint: "Retry the request"}
	default:
		e = &APIError{Code: CodeInternal, Message: "internal error"}
	}
	e.Status = statusFor(e.Code)
	return e
}

func statusFor(code string) int {
	switch code {
	case CodeAssetNotFound, CodeSessionNotFound, CodeItemNotFound, CodeTaskNotFound, CodeUserNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition:
		return http.StatusConflict
	case CodeNotInScope, CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
