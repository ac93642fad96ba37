package lifecycle

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Wrapped errors carry the human-readable
// message; match the kind with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrAlreadyAssigned is the Conflict returned when assigning an asset that
// is already assigned.
var ErrAlreadyAssigned = fmt.Errorf("%w: Asset is already assigned", ErrConflict)

// ErrAssetNotFound is returned when no asset has the requested identifier.
var ErrAssetNotFound = fmt.Errorf("%w: Asset not found", ErrNotFound)

// Message strips the kind prefix from a lifecycle error, leaving the text
// meant for the caller.
func Message(err error) string {
	msg := err.Error()
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrInvalidState, ErrInvalidArgument} {
		prefix := kind.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
