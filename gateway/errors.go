package gateway

import (
	// Go Internal Packages
	"fmt"
	"regexp"
	"strings"

	// Local Packages
	errors "bbps-hub/errors"
)

// ErrorKind separates the failure modes of a call to the biller.
type ErrorKind int

const (
	// KindUpstream is a non-2xx response or an error envelope.
	KindUpstream ErrorKind = iota
	// KindNoResponse means the request was sent but nothing came back,
	// timeouts included.
	KindNoResponse
	// KindRequestSetup means the request could not be built.
	KindRequestSetup
	// KindConfig means the client is misconfigured; no request was attempted.
	KindConfig
	// KindUnauthorizedIP means the caller address is not whitelisted.
	KindUnauthorizedIP
	// KindInvalidSignature means the secret-key header was rejected.
	KindInvalidSignature
	// KindTimestampRejected means the secret-key-timestamp was rejected,
	// usually clock skew. Safe to retry.
	KindTimestampRejected
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind       ErrorKind
	HTTPStatus int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNoResponse:
		return fmt.Sprintf("eko api: no response received: %v", e.Err)
	case KindRequestSetup:
		return fmt.Sprintf("eko api request error: %v", e.Err)
	case KindConfig:
		return fmt.Sprintf("eko api configuration error: %s", e.Message)
	case KindUnauthorizedIP:
		return "UNAUTHORIZED_IP: caller IP address is not whitelisted with the biller"
	case KindInvalidSignature:
		return "INVALID_SECRET_KEY: authentication failed, check the authenticator key"
	case KindTimestampRejected:
		return "TIMESTAMP_MISMATCH: request timestamp is invalid or expired"
	}
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("eko api error [%s]: %s (status: %d)", e.Code, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("eko api error [%s]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrKind maps the gateway taxonomy onto the service wide error kinds.
func (e *Error) ErrKind() errors.Kind {
	switch e.Kind {
	case KindConfig:
		return errors.Config
	case KindNoResponse:
		return errors.Unavailable
	case KindRequestSetup:
		return errors.Internal
	}
	return errors.Upstream
}

// FailureCode is the code recorded on a failed fetch or payment. The labelled
// authentication failures get their well known code even when the biller
// sent none.
func (e *Error) FailureCode() string {
	switch e.Kind {
	case KindNoResponse:
		return "NO_RESPONSE"
	case KindRequestSetup:
		return "REQUEST_SETUP"
	case KindConfig:
		return "CONFIG_ERROR"
	case KindUnauthorizedIP:
		return "UNAUTHORIZED_IP"
	case KindInvalidSignature:
		return "INVALID_SECRET_KEY"
	case KindTimestampRejected:
		return "TIMESTAMP_MISMATCH"
	}
	return e.Code
}

// Retryable reports whether the same request may succeed if sent again.
func (e *Error) Retryable() bool {
	return e.Kind == KindNoResponse || e.Kind == KindTimestampRejected
}

var ipWord = regexp.MustCompile(`\bIP\b`)

// classify turns an upstream code and message into an Error, recognising the
// well known authentication failures.
func classify(status int, code, message string) *Error {
	if code == "" {
		code = "API_ERROR"
	}
	if message == "" {
		message = "unknown error"
	}
	e := &Error{Kind: KindUpstream, HTTPStatus: status, Code: code, Message: message}

	lower := strings.ToLower(message)
	switch {
	case code == "UNAUTHORIZED_IP" || ipWord.MatchString(message):
		e.Kind = KindUnauthorizedIP
	case code == "INVALID_SECRET_KEY" || strings.Contains(lower, "secret-key"):
		e.Kind = KindInvalidSignature
	case code == "TIMESTAMP_MISMATCH" || strings.Contains(lower, "timestamp"):
		e.Kind = KindTimestampRejected
	}
	return e
}
