// Package dbcerrors provides the structured error type shared by every
// schema codec, driver, and the copy planner: a small closed set of
// error kinds carrying a stack trace and retryability,
// adapted from the ambient error-handling style of this codebase's
// client packages.
package dbcerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind categorizes an Error for callers that branch on failure mode
// (the CLI's exit-code mapping, the retry policy, the planner's
// fallback-to-generic-copy decision).
type Kind string

const (
	// KindParse covers malformed schema source text (TypeScript
	// subset, CREATE TABLE, BigQuery JSON, CSV header).
	KindParse Kind = "parse"
	// KindUnsupportedType is raised when a DataType has no mapping in
	// the target dialect.
	KindUnsupportedType Kind = "unsupported_type"
	// KindUnsupportedFeature is raised when a requested option needs a
	// FeatureSet flag the driver doesn't advertise.
	KindUnsupportedFeature Kind = "unsupported_feature"
	// KindLocator covers malformed or unrecognized locator strings.
	KindLocator Kind = "locator"
	// KindSchemaMismatch covers incompatible source/destination shapes.
	KindSchemaMismatch Kind = "schema_mismatch"
	// KindNotFound covers missing tables, files, or buckets.
	KindNotFound Kind = "not_found"
	// KindAlreadyExists covers IfExists conflicts.
	KindAlreadyExists Kind = "already_exists"
	// KindPermissionDenied covers authorization failures.
	KindPermissionDenied Kind = "permission_denied"
	// KindTemporaryRequired is raised when a shortcut or generic path
	// needs a temporary location the caller didn't supply.
	KindTemporaryRequired Kind = "temporary_required"
	// KindIO covers local filesystem and stream failures.
	KindIO Kind = "io"
	// KindNetwork covers remote-call transport failures.
	KindNetwork Kind = "network"
	// KindTimeout covers deadline exceeded.
	KindTimeout Kind = "timeout"
	// KindCancelled covers context cancellation.
	KindCancelled Kind = "cancelled"
	// KindInternal covers everything else; it indicates a bug.
	KindInternal Kind = "internal"
)

// Error is the structured error type returned by every package in
// this module. It carries the failing operation's Kind, a message, an
// optional wrapped cause, arbitrary key/value Details for logging,
// and the stack frame where it was created.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is one frame of a captured call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a key/value pair, returning e for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an Error of the given kind, capturing the caller's
// stack.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Stack: captureStack(2)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches kind and message to an existing error, preserving the
// original stack if cause is already one of our Errors so a chain of
// wraps doesn't hide where the failure actually originated.
func Wrap(cause error, kind Kind, message string) *Error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return &Error{Kind: kind, Message: message, Cause: cause, Stack: existing.Stack}
	}
	return &Error{Kind: kind, Message: message, Cause: cause, Stack: captureStack(2)}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(cause error, kind Kind, format string, args ...interface{}) *Error {
	return Wrap(cause, kind, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err's kind is one the retry policy in
// pkg/retry treats as transient.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// Is reports whether err is an Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// ExitCode maps an error to the process exit code the CLI shell
// reports: 0 on success (not reached here), 2 for usage/locator/parse
// mistakes the user can fix by changing their invocation, 1 for
// everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindParse, KindLocator, KindUnsupportedFeature, KindUnsupportedType:
			return 2
		}
	}
	return 1
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)
	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		frames = append(frames, StackFrame{Function: fn.Name(), File: file, Line: line})
	}
	return frames
}
