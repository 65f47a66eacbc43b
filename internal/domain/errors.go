package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the application.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("unauthorized access")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("resource already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDeliveryBlocked = errors.New("delivery blocked")
	ErrMessageDeleted  = errors.New("message is already deleted")
	ErrStore           = errors.New("store failure")
)

// Kind names one branch of the error taxonomy reported to clients.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindBlocked       Kind = "blocked"
	KindStore         Kind = "store"
)

// Invalid returns an ErrInvalidInput carrying a reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Forbidden returns an ErrForbidden carrying a reason.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// StoreFailure wraps err as ErrStore unless it already is a domain error.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// IsDomainError reports whether err wraps one of the sentinels above.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrUnauthorized, ErrForbidden, ErrConflict,
		ErrInvalidInput, ErrDeliveryBlocked, ErrMessageDeleted, ErrStore,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// KindOf classifies err. Anything unrecognised is a store failure.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMessageDeleted):
		return KindValidation
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrDeliveryBlocked):
		return KindBlocked
	default:
		return KindStore
	}
}
