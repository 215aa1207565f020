// Package sentinel holds the storage-level facts that stores report and
// services translate into apperr values. Both the Mongo stores and the
// in-memory stores return these (optionally wrapped).
package sentinel

import "errors"

var (
	// ErrNotFound: no document matches the key.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate: a unique index (or equivalent) rejected the write.
	ErrDuplicate = errors.New("duplicate")
	// ErrInvalidState: the document exists but a conditional write's
	// precondition did not hold (full team, terminal payment, decided
	// request, user already on a team).
	ErrInvalidState = errors.New("invalid state")
)
