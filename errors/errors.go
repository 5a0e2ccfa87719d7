// Package errors defines the error type shared by every stage of the area
// weighted average pipeline. Each error carries a Kind so that callers can
// tell malformed input apart from bad data, missing capabilities and
// cancellation without parsing messages.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	// KindValidation marks malformed input detected before any geometric work.
	KindValidation Kind = "validation"
	// KindData marks invalid values met while aggregating.
	KindData Kind = "data"
	// KindDependency marks an unavailable optional capability (HTML rendering).
	KindDependency Kind = "dependency"
	// KindGeometry marks a failure inside the geometry engine.
	KindGeometry Kind = "geometry"
	// KindIO marks a failure reading or writing a layer or artifact.
	KindIO Kind = "io"
	// KindCanceled marks a run stopped by its caller.
	KindCanceled Kind = "canceled"
)

// Error is the single error type returned by the pipeline.
type Error struct {
	Kind Kind
	// Stage names the pipeline stage that failed, empty when not stage bound.
	Stage string
	// FeatureID is the input_feat_id involved, 0 when unknown.
	FeatureID int
	Message   string
	Cause     error
}

// Error implements the error interface.
// Format: "<kind> error [stage <stage>] [input feature <id>]: <message>: <cause>"
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(" error")
	if e.Stage != "" {
		fmt.Fprintf(&sb, " in stage %s", e.Stage)
	}
	if e.FeatureID > 0 {
		fmt.Fprintf(&sb, " (input feature %d)", e.FeatureID)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithFeature returns a copy of e bound to the given input feature.
func (e *Error) WithFeature(id int) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.FeatureID = id
	return &clone
}

// New constructs an Error without a cause.
func New(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error around err. It returns nil when err is nil.
// When err already is an *Error and kind is empty, the original kind is kept.
func Wrap(err error, kind Kind, stage, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	if kind == "" {
		kind = KindOf(err)
	}
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validation builds a KindValidation error.
func Validation(stage, format string, args ...any) *Error {
	return New(KindValidation, stage, format, args...)
}

// Data builds a KindData error.
func Data(stage, format string, args ...any) *Error {
	return New(KindData, stage, format, args...)
}

// Dependency builds a KindDependency error.
func Dependency(stage, format string, args ...any) *Error {
	return New(KindDependency, stage, format, args...)
}

// Canceled builds the error returned when a run is canceled before stage.
// It wraps context.Canceled (or the context's own error) so that
// errors.Is(err, context.Canceled) holds.
func Canceled(stage string, cause error) *Error {
	if cause == nil {
		cause = context.Canceled
	}
	return &Error{Kind: KindCanceled, Stage: stage, Message: "run canceled", Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain holds an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is errors.As from the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }
