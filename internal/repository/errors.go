// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to operate on a resource owned by someone else, while
// ErrInvalidState signals an attempt to move a withdrawal out of a
// terminal status. Not-found conditions are reported with
// sql.ErrNoRows, as the standard library does.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert cannot proceed because of
// existing state, such as requesting a withdrawal while another one
// is still pending. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrInvalidState is returned when a withdrawal that is not pending
// is asked to transition. Paid and declined are terminal; the row is
// left untouched.
var ErrInvalidState = errors.New("invalid state transition")

// ErrDuplicatePurchase is returned by the purchase repository when a
// completed ledger row already exists for the same user, document and
// transaction type, or for the same gateway reference. Callers treat
// it as idempotent success and return the existing row.
var ErrDuplicatePurchase = errors.New("purchase already recorded")
