// Package apperror defines the error kinds services return and how they map
// onto HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	}
	return "internal"
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusUnprocessableEntity
	case KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error is a classified error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, apperror.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind markers for errors.Is
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrInternal        = &Error{Kind: KindInternal}
	ErrUnavailable     = &Error{Kind: KindUnavailable}
)

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps err. The message is what clients see; err is only logged.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// Unavailable marks a retryable failure such as pool exhaustion.
func Unavailable(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var ce *CycleError
	if errors.As(err, &ce) {
		return KindConflict
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the operation unchanged.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// CycleError rejects a dependency that would close a cycle. Path runs from
// the new edge's source through existing edges and back to it.
type CycleError struct {
	TaskID          int64
	DependsOnTaskID int64
	Path            []int64
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf(
		"adding this dependency would create a cycle: task %d already depends on task %d directly or indirectly",
		e.DependsOnTaskID, e.TaskID,
	)
	if len(e.Path) > 0 {
		msg += " (" + FormatPath(e.Path) + ")"
	}
	return msg
}

// Is lets errors.Is(err, ErrConflict) match cycle rejections.
func (e *CycleError) Is(target error) bool {
	return target == ErrConflict
}

// maxRenderedPath bounds how many ids FormatPath writes out.
const maxRenderedPath = 20

// FormatPath renders a task path as "1 -> 2 -> 3". Paths longer than
// maxRenderedPath are cut and end with a count of the omitted ids.
func FormatPath(path []int64) string {
	shown := path
	if len(shown) > maxRenderedPath {
		shown = shown[:maxRenderedPath]
	}
	parts := make([]string, len(shown))
	for i, id := range shown {
		parts[i] = strconv.FormatInt(id, 10)
	}
	out := strings.Join(parts, " -> ")
	if omitted := len(path) - len(shown); omitted > 0 {
		out += fmt.Sprintf(" -> ... (%d more)", omitted)
	}
	return out
}
