package errs

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

var ErrAlreadyExists = errors.New("already exists")

var ErrInternal = errors.New("internal error")

var ErrUnauthorized = errors.New("unauthorized")

var ErrConflict = errors.New("concurrent modification")

// ValidationError reports the first field of an untrusted payload that does
// not match its declared shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed at %q: %s", e.Field, e.Reason)
}

// UpstreamError is returned by the market data client when the provider
// answers with a non-success status or the request itself fails.
type UpstreamError struct {
	Op         string
	CoinID     string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	target := e.Op
	if e.CoinID != "" {
		target = fmt.Sprintf("%s(%s)", e.Op, e.CoinID)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d", target, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: %v", target, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

type VerificationError struct {
	Address string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("signature does not match address %s", e.Address)
}

func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func IsUpstream(err error) bool {
	var uErr *UpstreamError
	return errors.As(err, &uErr)
}

func IsVerification(err error) bool {
	var vErr *VerificationError
	return errors.As(err, &vErr)
}
