package zohocrm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTokenReceived is returned when the token endpoint answers with a
	// well-formed body that carries no access_token.
	ErrNoTokenReceived = errors.New("no token received")

	// ErrEmptyResponse is returned when the vendor answers with an empty body
	// (or an empty data array where one record was expected).
	ErrEmptyResponse = errors.New("empty response")

	// ErrInvalidToken matches API errors that mean the cached access token
	// was rejected. The client does not refresh on its own; callers decide
	// whether to ResetToken and retry.
	ErrInvalidToken = errors.New("access token rejected")
)

// AuthError is returned when the token endpoint rejects the credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// APIError is the request-level error envelope returned by data endpoints.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is reports token rejection codes as ErrInvalidToken.
func (e *APIError) Is(target error) bool {
	if target != ErrInvalidToken {
		return false
	}
	switch e.Code {
	case "INVALID_TOKEN", "AUTHENTICATION_FAILURE":
		return true
	}
	return false
}

// UnexpectedResponseError carries a body that matched no known shape. Its
// message is the raw body itself, which is how the vendor reports some
// failures (e.g. a bare "invalid_client").
type UnexpectedResponseError struct {
	Body string
}

func (e *UnexpectedResponseError) Error() string {
	return e.Body
}

// TransportError wraps network, TLS and timeout failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
