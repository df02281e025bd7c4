package apperror

import (
	"context"
	"errors"

	"github.com/JunoAX/familytasks-go/internal/store"
)

// FromStore classifies a persistence error. what names the entity for the
// not-found message, e.g. "Task 4". Errors that are already classified pass
// through unchanged.
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}

	var ae *Error
	var ce *CycleError
	if errors.As(err, &ae) || errors.As(err, &ce) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return NotFound("%s not found", what)
	case errors.Is(err, store.ErrDuplicate):
		return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
	case errors.Is(err, store.ErrForeignKey):
		return &Error{Kind: KindInvalidArgument, Message: what + " references a missing record", Err: err}
	case errors.Is(err, store.ErrCheck):
		return &Error{Kind: KindInvalidArgument, Message: what + " violates a constraint", Err: err}
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return Unavailable(err, "database temporarily unavailable, retry the request")
	}
	return Internal(err, "internal error")
}
