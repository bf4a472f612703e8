package tools

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a tool failure so callers can decide what to surface to the
// model and what to treat as a hard stop.
type Kind int

const (
	KindInvalidArgs Kind = iota + 1
	KindExecution
	KindNotFound
	KindDenied
	KindRespondToModel
	KindFatal
	KindTimeout
	KindMissingDependency
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgs:
		return "invalid_args"
	case KindExecution:
		return "execution"
	case KindNotFound:
		return "not_found"
	case KindDenied:
		return "denied"
	case KindRespondToModel:
		return "respond_to_model"
	case KindFatal:
		return "fatal"
	case KindTimeout:
		return "timeout"
	case KindMissingDependency:
		return "missing_dependency"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across the tool boundary.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	switch e.Kind {
	case KindInvalidArgs:
		return "invalid tool arguments: " + msg
	case KindExecution:
		return "tool execution failed: " + msg
	case KindNotFound:
		return "not found: " + msg
	case KindDenied:
		return "permission denied: " + msg
	case KindFatal:
		return "fatal tool error: " + msg
	case KindTimeout:
		return "tool timed out: " + msg
	case KindMissingDependency:
		return "missing dependency: " + msg
	default:
		return msg
	}
}

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgs(format string, args ...any) error { return newError(KindInvalidArgs, format, args...) }
func Execution(format string, args ...any) error   { return newError(KindExecution, format, args...) }
func NotFound(format string, args ...any) error    { return newError(KindNotFound, format, args...) }
func Denied(format string, args ...any) error      { return newError(KindDenied, format, args...) }
func Fatal(format string, args ...any) error       { return newError(KindFatal, format, args...) }

func MissingDependency(format string, args ...any) error {
	return newError(KindMissingDependency, format, args...)
}

// RespondToModel reports a recoverable mistake in the request; the message is
// meant to be read by the model as-is.
func RespondToModel(format string, args ...any) error {
	return newError(KindRespondToModel, format, args...)
}

func Timeout(d time.Duration) error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf("after %dms", d.Milliseconds())}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

func IsNotFound(err error) bool       { return IsKind(err, KindNotFound) }
func IsInvalidArgs(err error) bool    { return IsKind(err, KindInvalidArgs) }
func IsDenied(err error) bool         { return IsKind(err, KindDenied) }
func IsRespondToModel(err error) bool { return IsKind(err, KindRespondToModel) }
