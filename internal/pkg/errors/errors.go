package errors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid")
	ErrInternal      = errors.New("internal")
	ErrUnavailable   = errors.New("service unavailable")
	ErrNotConfigured = errors.New("not configured")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
