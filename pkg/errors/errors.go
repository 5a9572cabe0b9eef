// Package errors provides structured error handling for Quasar.
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/ajitpratap0/quasar/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeSchemaMismatch reports a batch or table shape/type disagreement.
	// Appends that fail with it are atomic: no partial mutation stays visible.
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrorTypeUnknownColumn reports a reference to a column name that does
	// not exist in the schema.
	ErrorTypeUnknownColumn ErrorType = "unknown_column"
	// ErrorTypeIndexOutOfRange reports an index past the end of a column,
	// mask, or batch.
	ErrorTypeIndexOutOfRange ErrorType = "index_out_of_range"
	// ErrorTypeUnsupported reports an operation the storage model rejects by
	// design, such as interior insertion or appending through a view.
	ErrorTypeUnsupported ErrorType = "unsupported"
	// ErrorTypeInternal reports a violated internal invariant, e.g. a
	// categorical code pointing outside its dictionary. Always a bug.
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeSource represents batch producer errors (file parse, decode).
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeSink represents batch consumer errors (write, flush).
	ErrorTypeSink ErrorType = "sink"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf wraps an existing error with formatted context
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return Wrap(err, errType, stringpool.Sprintf(format, args...))
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsSchemaMismatch reports whether err is a schema mismatch.
func IsSchemaMismatch(err error) bool { return IsType(err, ErrorTypeSchemaMismatch) }

// IsUnknownColumn reports whether err references a missing column.
func IsUnknownColumn(err error) bool { return IsType(err, ErrorTypeUnknownColumn) }

// IsIndexOutOfRange reports whether err is an out-of-range index.
func IsIndexOutOfRange(err error) bool { return IsType(err, ErrorTypeIndexOutOfRange) }

// IsUnsupported reports whether err is a rejected-by-design operation.
func IsUnsupported(err error) bool { return IsType(err, ErrorTypeUnsupported) }

// IsInternal reports whether err is a violated internal invariant.
func IsInternal(err error) bool { return IsType(err, ErrorTypeInternal) }

// captureStack captures the current call stack
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

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
