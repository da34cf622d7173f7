// Package apperr carries the error taxonomy shared by the fulfillment
// services and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// KindValidation covers malformed or missing input.
	KindValidation Kind = iota
	// KindNotFound covers referenced entities absent locally, usually a
	// projection that has not caught up yet.
	KindNotFound
	// KindUnavailable covers registry misses and downstream timeouts.
	KindUnavailable
	// KindConflict covers business-rule violations.
	KindConflict
	// KindDownstream covers failures propagated from a remote call made
	// during the saga.
	KindDownstream
)

// Error pairs a Kind with an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	remoteStatus int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string) *Error  { return New(KindValidation, msg) }
func NotFound(msg string) *Error    { return New(KindNotFound, msg) }
func Unavailable(msg string) *Error { return New(KindUnavailable, msg) }
func Conflict(msg string) *Error    { return New(KindConflict, msg) }

// Downstream wraps a failed remote call. When the remote reported an HTTP
// status it is preserved so the caller's response mirrors it.
func Downstream(msg string, status int, err error) *Error {
	return &Error{Kind: KindDownstream, Msg: msg, Err: err, remoteStatus: status}
}

// HTTPStatus maps an error to the status code surfaced to API consumers.
// Unknown errors default to 503: the saga rolled back because something
// downstream failed.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusServiceUnavailable
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindConflict:
		return http.StatusConflict
	case KindDownstream:
		if e.remoteStatus >= 400 {
			return e.remoteStatus
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusServiceUnavailable
	}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
