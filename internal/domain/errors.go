package domain

import (
	"errors"
	"fmt"
)

// ValidationError marks a malformed or missing profile field. It is the
// only condition that aborts a turn at the pipeline boundary.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// LookupFailure means the historical store was unreachable. Callers degrade
// to a no-history context; it is never fatal.
type LookupFailure struct {
	Op  string
	Err error
}

func (e *LookupFailure) Error() string { return fmt.Sprintf("lookup %s: %v", e.Op, e.Err) }
func (e *LookupFailure) Unwrap() error { return e.Err }

// InferenceFailure means the classifier, embedding, or generation
// collaborator timed out or errored. It triggers the deterministic
// fallback path for the failing component.
type InferenceFailure struct {
	Component string
	Err       error
}

func (e *InferenceFailure) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Component, e.Err)
}
func (e *InferenceFailure) Unwrap() error { return e.Err }

// ParseFailure means a model produced output that is not well-formed. It is
// handled identically to InferenceFailure.
type ParseFailure struct {
	Raw string
	Err error
}

func (e *ParseFailure) Error() string { return fmt.Sprintf("parse model output: %v", e.Err) }
func (e *ParseFailure) Unwrap() error { return e.Err }

// ErrInvalidTransition is returned when a requested verification-status
// change is not allowed by the lifecycle table.
var ErrInvalidTransition = errors.New("invalid verification status transition")

// IsModelFailure reports whether err is an inference or parse failure,
// i.e. whether the rule fallback should run.
func IsModelFailure(err error) bool {
	var inf *InferenceFailure
	var par *ParseFailure
	return errors.As(err, &inf) || errors.As(err, &par)
}
