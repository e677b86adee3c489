package nyt

import "errors"

var (
	// ErrUnauthorized is returned when the service rejects the session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnexpectedStatus is returned for any other non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrMalformedResponse is returned when the body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)
