package orchestrator

import "errors"

var (
	// ErrConflict means the unique server name constraint rejected an insert.
	ErrConflict = errors.New("server name must be unique")
	// ErrNotFound means the referenced parent record does not exist.
	ErrNotFound = errors.New("parent server not found")
)

// ValidationError reports a user-correctable problem with one input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
