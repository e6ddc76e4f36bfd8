package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request.
type Kind string

const (
	KindApplication   Kind = "application_error"
	KindAuthExpired   Kind = "auth_expired"
	KindForbidden     Kind = "permission_denied"
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation_failed"
	KindRateLimited   Kind = "rate_limited"
	KindServer        Kind = "server_error"
	KindHTTP          Kind = "http_error"
	KindNetwork       Kind = "network_error"
	KindConfiguration Kind = "configuration_error"
)

const (
	messageApplication   = "request failed"
	messageAuthExpired   = "session expired"
	messageForbidden     = "forbidden"
	messageNotFound      = "not found"
	messageValidation    = "validation failed"
	messageRateLimited   = "too many requests"
	messageServer        = "internal error"
	messageNetwork       = "network unreachable"
	messageConfiguration = "invalid request"
)

// Error is the failure half of a Result. Two Errors match under errors.Is when their kinds agree.
type Error struct {
	Kind    Kind
	Status  int
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrApplication   = &Error{Kind: KindApplication, Message: messageApplication}
	ErrAuthExpired   = &Error{Kind: KindAuthExpired, Message: messageAuthExpired}
	ErrForbidden     = &Error{Kind: KindForbidden, Message: messageForbidden}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: messageNotFound}
	ErrValidation    = &Error{Kind: KindValidation, Message: messageValidation}
	ErrRateLimited   = &Error{Kind: KindRateLimited, Message: messageRateLimited}
	ErrServer        = &Error{Kind: KindServer, Message: messageServer}
	ErrHTTP          = &Error{Kind: KindHTTP, Message: messageApplication}
	ErrNetwork       = &Error{Kind: KindNetwork, Message: messageNetwork}
	ErrConfiguration = &Error{Kind: KindConfiguration, Message: messageConfiguration}
)

// KindOf returns the kind of a transport error, or "" for anything else.
func KindOf(err error) Kind {
	var transportErr *Error
	if errors.As(err, &transportErr) {
		return transportErr.Kind
	}
	return ""
}

// classifyStatus maps a non-2xx status to its kind and fallback message.
func classifyStatus(status int) (Kind, string) {
	switch status {
	case http.StatusUnauthorized:
		return KindAuthExpired, messageAuthExpired
	case http.StatusForbidden:
		return KindForbidden, messageForbidden
	case http.StatusNotFound:
		return KindNotFound, messageNotFound
	case http.StatusUnprocessableEntity:
		return KindValidation, messageValidation
	case http.StatusTooManyRequests:
		return KindRateLimited, messageRateLimited
	case http.StatusInternalServerError:
		return KindServer, messageServer
	default:
		return KindHTTP, fmt.Sprintf("request failed (%d)", status)
	}
}
