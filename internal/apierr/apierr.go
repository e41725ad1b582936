// Package apierr defines the closed set of error kinds the gateway
// recognizes and their mapping to HTTP status codes.
package apierr

import (
	"errors"
	"net/http"
)

// Kind is one of the error kinds recognized in the core (spec §7).
type Kind string

const (
	Validation         Kind = "validation"
	RateLimited        Kind = "rate_limited"
	Overloaded         Kind = "overloaded"
	UpstreamTimeout    Kind = "upstream_timeout"
	UpstreamError      Kind = "upstream_error"
	DebridAuthInvalid  Kind = "debrid_auth_invalid"
	DebridBlocked      Kind = "debrid_blocked"
	DebridTransient    Kind = "debrid_transient"
	DebridNoFiles      Kind = "debrid_no_files"
	Internal           Kind = "internal"
)

// Error wraps an error with a Kind so handlers can map it to an HTTP status
// and a stable JSON body without string-sniffing.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps a Kind to the status code the protective envelope and the
// play handler must emit for it (spec §7).
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case RateLimited:
		return http.StatusTooManyRequests
	case Overloaded:
		return http.StatusServiceUnavailable
	case UpstreamTimeout:
		return http.StatusGatewayTimeout
	case UpstreamError:
		return http.StatusBadGateway
	case DebridAuthInvalid:
		return http.StatusUnauthorized
	case DebridBlocked:
		return http.StatusBadGateway
	case DebridTransient:
		return http.StatusBadGateway
	case DebridNoFiles:
		return http.StatusNotFound
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Body is the stable JSON shape returned for a surfaced error.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Body() Body {
	return Body{Error: string(e.Kind), Message: e.Message}
}
