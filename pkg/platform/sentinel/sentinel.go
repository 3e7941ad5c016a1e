package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and transports return
// these (optionally wrapped) so services can decide how to degrade.
//
// - ErrNotFound: key or record does not exist in a store
// - ErrExpired: entry exists but its TTL has elapsed
// - ErrUnavailable: backing service temporarily unavailable
// - ErrInvalidInput: caller supplied a value the component cannot use
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidInput = errors.New("invalid input")
)
