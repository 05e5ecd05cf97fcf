// ABOUTME: Structured error context for the pipeline error taxonomy
// ABOUTME: Error codes, categories, stack capture, and slog integration

package observability

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// Error category constants.
const (
	CategoryBackpressure = "backpressure" // Expected under load, not a bug.
	CategoryDegraded     = "degraded"     // Analysis bound hit; verdict still produced.
	CategoryUserError    = "user_error"   // Caused by the submitted input itself.
	CategoryInternal     = "internal"     // Unexpected failure inside the pipeline.
)

// Pipeline error codes. These are the only failure shapes the pipeline
// surfaces; everything else becomes a degraded verdict.
const (
	CodeQueueFull         = "QUEUE_FULL"
	CodeTimeout           = "ANALYSIS_TIMEOUT"
	CodeResourceExhausted = "RESOURCE_EXHAUSTED"
	CodeAnalysisFault     = "ANALYSIS_FAULT"
	CodeOversizedInput    = "OVERSIZED_INPUT"
)

// ErrorContext provides structured context for errors.
type ErrorContext struct {
	// Code is a unique error identifier (e.g., "ANALYSIS_TIMEOUT").
	Code string `json:"code"`

	// Category classifies the error type.
	Category string `json:"category"`

	// Operation is the operation that failed (e.g., "tier1_analyze").
	Operation string `json:"operation"`

	// StackTrace contains the call stack if captured.
	StackTrace string `json:"stack_trace,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`

	// Err is the underlying error if any.
	Err error `json:"-"`
}

// NewErrorContext creates a new error context.
func NewErrorContext(code, category, operation string) *ErrorContext {
	return &ErrorContext{
		Code:      code,
		Category:  category,
		Operation: operation,
	}
}

// WithStack captures the current call stack.
func (e *ErrorContext) WithStack() *ErrorContext {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(2, pcs[:])

	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	e.StackTrace = sb.String()
	return e
}

// WithDetails adds additional context details.
func (e *ErrorContext) WithDetails(details any) *ErrorContext {
	e.Details = details
	return e
}

// WithError attaches the underlying error.
func (e *ErrorContext) WithError(err error) *ErrorContext {
	e.Err = err
	return e
}

// IsBackpressure returns true for load-shedding errors the caller should
// resolve by policy rather than by retry or alert.
func (e *ErrorContext) IsBackpressure() bool {
	return e.Category == CategoryBackpressure
}

// Error implements the error interface.
func (e *ErrorContext) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Code, e.Category, e.Operation, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Operation)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ErrorContext) Unwrap() error {
	return e.Err
}

// LogValue implements slog.LogValuer for structured logging.
func (e *ErrorContext) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", e.Code),
		slog.String("category", e.Category),
		slog.String("operation", e.Operation),
	}

	if e.StackTrace != "" {
		attrs = append(attrs, slog.String("stack_trace", e.StackTrace))
	}
	if e.Details != nil {
		attrs = append(attrs, slog.Any("details", e.Details))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	return slog.GroupValue(attrs...)
}
