package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a state conflict: an illegal status transition,
// a lost acceptance race or a uniqueness violation (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrForbidden indicates that the actor is not allowed to act on this delivery.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable indicates an upstream provider failure that is safe to retry.
var ErrUnavailable = errors.New("upstream unavailable")
