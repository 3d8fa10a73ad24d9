// Package apperr defines the typed error kinds surfaced by every component of
// identityguard. Callers compare with errors.Is against the sentinel Kind
// values rather than parsing message text.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"
)

// Kind classifies why an operation failed. See spec §7.
type Kind string

const (
	BadInput               Kind = "BAD_INPUT"
	UserNotFound           Kind = "USER_NOT_FOUND"
	DeviceNotFound         Kind = "DEVICE_NOT_FOUND"
	DeviceInactive         Kind = "DEVICE_INACTIVE"
	DeviceMismatch         Kind = "DEVICE_MISMATCH"
	FingerprintingDisabled Kind = "FINGERPRINTING_DISABLED"
	MaxDevices             Kind = "MAX_DEVICES"
	IPBlocked              Kind = "IP_BLOCKED"
	IPSuspicious           Kind = "IP_SUSPICIOUS"
	IPInvalid              Kind = "IP_INVALID"
	RateLimit              Kind = "RATE_LIMIT"
	RateLimiterUnavailable Kind = "RATE_LIMITER_UNAVAILABLE"
	ExternalUnavailable    Kind = "EXTERNAL_UNAVAILABLE"
	Internal               Kind = "INTERNAL"
)

// Error is the concrete error type returned by identityguard components.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// LogValue lets slog render the error as structured attributes instead of a
// flattened string.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("kind", string(e.Kind)), slog.String("message", e.Message)}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error carrying an underlying cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, defaulting to Internal when err is
// not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
