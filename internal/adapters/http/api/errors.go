package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrConfirmationMissing = errors.New("confirmation required")
)
