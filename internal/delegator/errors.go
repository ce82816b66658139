package delegator

import "errors"

// Sentinel errors for the delegator registry.
var (
	ErrNotFound          = errors.New("delegator not registered")
	ErrAlreadyRegistered = errors.New("delegator already registered")
	ErrInvalidSignature  = errors.New("invalid delegator signature")
	ErrParamMismatch     = errors.New("param does not match signature")
)
