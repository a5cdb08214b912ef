// Package apperror classifies failures into the outcomes the HTTP layer
// knows how to answer: invalid input, missing record, or a failed store call.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// KindStoreFailure is the zero value so that an Error built without a
	// kind never leaks details to the caller.
	KindStoreFailure Kind = iota
	KindInvalidArgument
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	default:
		return "store_failure"
	}
}

// GenericMessage is the only text a caller sees for a store failure.
const GenericMessage = "Internal Server Error"

type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "todo.update"
	Message string // safe to show to the caller for 4xx kinds
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// StoreFailure wraps an error returned by the record or blob store.
func StoreFailure(op string, err error) *Error {
	return &Error{Kind: KindStoreFailure, Op: op, Message: GenericMessage, Err: err}
}

// KindOf reports the kind of err. Untyped errors and context expiry count as
// store failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreFailure
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be sent back to the caller.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStoreFailure && e.Message != "" {
		return e.Message
	}
	return GenericMessage
}

// FromStore translates an error from a store call. Errors that are already
// classified pass through; timeouts and everything else become store failures.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StoreFailure(op, fmt.Errorf("store call timed out: %w", err))
	}
	return StoreFailure(op, err)
}
