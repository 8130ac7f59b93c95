package domain

import "errors"

// Error taxonomy shared by the services. Handlers map these to HTTP codes;
// services wrap them with context via fmt.Errorf("...: %w", Err...).
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidState        = errors.New("operation not allowed in current status")
	ErrConflict            = errors.New("already applied by a concurrent writer")
	ErrUpstreamUnavailable = errors.New("payment gateway unavailable")
	ErrUnauthenticated     = errors.New("unauthenticated")
)
