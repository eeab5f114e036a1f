package domain

import "errors"

// Domain errors
var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrUnexpectedShape = errors.New("unexpected response shape")
	ErrUpstreamStatus  = errors.New("upstream returned non-2xx status")
	ErrInvalidInput    = errors.New("invalid search input")
	ErrPageOutOfRange  = errors.New("page out of range")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInternalError   = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound)
}

// IsUpstreamError reports whether err came from the upstream API rather than the caller
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstreamStatus) || errors.Is(err, ErrUnexpectedShape)
}
