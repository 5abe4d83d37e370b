package activity

import "errors"

// ErrInvalidInput indicates an empty activity entry.
var ErrInvalidInput = errors.New("invalid activity input")
