package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrMalformedCallback = errors.New("invalid callback structure")
)

// ValidationError reports caller input rejected before any gateway call.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + " " + e.Msg
}

// AuthError reports a failed OAuth token fetch.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("failed to get access token: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// GatewayError reports a failed push or query call.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
