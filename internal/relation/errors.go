package relation

import "errors"

// Error kinds surfaced by the relationship subsystem. Callers match them
// with errors.Is; context is attached by wrapping with %w
var (
	ErrSelfReference     = errors.New("self_reference")
	ErrNotFound          = errors.New("not_found")
	ErrAlreadyExists     = errors.New("already_exists")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidArgument   = errors.New("invalid_argument")
	ErrStore             = errors.New("store_error")
)

// IsTerminal reports whether err is a business error that retrying cannot
// change
func IsTerminal(err error) bool {
	return errors.Is(err, ErrSelfReference) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidArgument)
}

var kinds = []error{
	ErrNotFound,
	ErrSelfReference,
	ErrAlreadyExists,
	ErrInvalidTransition,
	ErrUnauthenticated,
	ErrForbidden,
	ErrInvalidArgument,
	ErrStore,
}

// KindOf returns the error kind err wraps, or nil when it wraps none
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
