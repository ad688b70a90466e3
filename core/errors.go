package core

import "errors"

var (
	ErrEndpointRequired = errors.New("endpoint is required")
	ErrMalformedMessage = errors.New("malformed message")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidSeverity  = errors.New("invalid severity")
)
