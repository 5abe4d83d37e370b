package asset

import "errors"

var (
	// ErrAssetNotFound indicates no asset matches the lookup.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrInvalidScope indicates an unknown scope type.
	ErrInvalidScope = errors.New("invalid scope")
	// ErrInvalidCode indicates a blank scan code.
	ErrInvalidCode = errors.New("invalid scan code")
)
