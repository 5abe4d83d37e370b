package inventory

import "errors"

var (
	// ErrSessionNotFound indicates the session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrItemNotFound indicates the item doesn't exist.
	ErrItemNotFound = errors.New("item not found")
	// ErrTaskNotFound indicates the task doesn't exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition indicates the session or task state forbids the operation.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrNotInScope indicates the target belongs to another session or operator.
	ErrNotInScope = errors.New("not in scope")
	// ErrInvalidInput indicates invalid command input.
	ErrInvalidInput = errors.New("invalid inventory input")
	// ErrTransient indicates a lost race that could not be resolved; the client may retry.
	ErrTransient = errors.New("transient conflict, retry")
)
