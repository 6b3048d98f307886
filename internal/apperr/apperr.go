// Package apperr defines the closed error taxonomy for the service. Every
// failure that reaches the HTTP boundary is one of these kinds; the boundary
// translator matches the kind exhaustively to a status code. Anything that
// is not an *Error is treated as KindInternal.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindBadRequest is malformed input, not auth-specific.
	KindBadRequest Kind = iota
	// KindForbidden is a missing or invalid API key.
	KindForbidden
	// KindAuthFailure is an identity or permission problem: bad
	// credentials, revoked or unknown session, role mismatch.
	KindAuthFailure
	// KindAccessTokenExpired is kept distinct from KindAuthFailure so
	// clients know to refresh rather than re-login.
	KindAccessTokenExpired
	// KindNotFound is a missing resource on an otherwise valid request.
	KindNotFound
	// KindInternal covers signing key unavailability and unexpected store
	// failures. Safe for the caller to retry; the other kinds are not,
	// since retrying with the same input cannot change the outcome.
	KindInternal
)

// Error is the tagged-variant error carried through the auth core.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two *Error values by kind, so sentinel-style
// comparisons against constructors work in tests.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Msg: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Msg: msg} }

func AuthFailure(msg string) *Error { return &Error{Kind: KindAuthFailure, Msg: msg} }

func AccessTokenExpired(msg string) *Error {
	return &Error{Kind: KindAccessTokenExpired, Msg: msg}
}

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Msg: msg} }

func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: cause}
}

// KindOf extracts the kind from err, walking wrapped errors. Unknown errors
// are internal: the caller must never leak store or crypto details as an
// auth verdict.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message for err. Unknown errors get a
// generic message so internals never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "Something went wrong"
}
