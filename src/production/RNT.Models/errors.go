package rntmodels

import (
	"errors"
	"fmt"
)

// ErrorKind classifies coordinator failures so callers can decide how to
// react without string matching.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindNotFound
	KindTransport
	KindDataQuality
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindDataQuality:
		return "data_quality"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged error. All failure paths in the coordinator are
// local to the triggering call; no internal state is corrupted by any of
// these.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf returns a validation error (malformed input, rejected with
// no side effects).
func Validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf returns a conflict error (entity not in the required state).
func Conflictf(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf returns a not-found error.
func NotFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Transportf wraps err as a transport error (publish failed, no device
// available). Transport failures are logged and never roll back committed
// state.
func Transportf(err error, format string, args ...interface{}) error {
	return &Error{Kind: KindTransport, Msg: fmt.Sprintf(format, args...), Err: err}
}

// DataQualityf returns a data-quality error (reading outside physical
// plausibility bounds).
func DataQualityf(format string, args ...interface{}) error {
	return &Error{Kind: KindDataQuality, Msg: fmt.Sprintf(format, args...)}
}

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func IsValidation(err error) bool  { return isKind(err, KindValidation) }
func IsConflict(err error) bool    { return isKind(err, KindConflict) }
func IsNotFound(err error) bool    { return isKind(err, KindNotFound) }
func IsTransport(err error) bool   { return isKind(err, KindTransport) }
func IsDataQuality(err error) bool { return isKind(err, KindDataQuality) }
