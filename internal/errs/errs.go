// Package errs defines the error kinds shared by the label scanning pipeline.
//
// Stage packages return the sentinel errors (wrapped with context via
// fmt.Errorf and %w). The orchestrator converts anything it cannot recover
// from into a *ScanError carrying a Code, so callers can branch on either
// errors.Is(err, errs.ErrNotInitialized) or CodeOf(err).
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies a scan failure.
type Code string

const (
	CodeNotInitialized     Code = "NOT_INITIALIZED"
	CodeModelShapeMismatch Code = "MODEL_SHAPE_MISMATCH"
	CodeInvalidRegion      Code = "INVALID_REGION"
	CodeInferenceFailed    Code = "INFERENCE_FAILED"
	CodePipelineFailed     Code = "PIPELINE_FAILED"
)

var (
	// ErrNotInitialized is returned by a stage that has not reached Ready.
	ErrNotInitialized = errors.New("model not initialized")

	// ErrModelShapeMismatch is returned when a model's declared tensor shape
	// or a produced buffer size disagrees with what the stage expects.
	ErrModelShapeMismatch = errors.New("model shape mismatch")

	// ErrInvalidRegion is returned for a crop rectangle that is empty after
	// clamping to the image bounds.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrInferenceFailed wraps errors raised by an inference engine.
	ErrInferenceFailed = errors.New("inference failed")
)

// ScanError is the structured failure returned by the orchestrator.
type ScanError struct {
	Code      Code
	Message   string
	RequestID string
	Cause     error
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewScanError wraps cause as a pipeline failure for the given request.
// The code is derived from the cause when it matches a known sentinel.
func NewScanError(requestID, message string, cause error) *ScanError {
	code := CodeOf(cause)
	if code == "" {
		code = CodePipelineFailed
	}
	return &ScanError{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Cause:     cause,
	}
}

// CodeOf reports the Code that best describes err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *ScanError
	if errors.As(err, &se) {
		return se.Code
	}
	switch {
	case errors.Is(err, ErrNotInitialized):
		return CodeNotInitialized
	case errors.Is(err, ErrModelShapeMismatch):
		return CodeModelShapeMismatch
	case errors.Is(err, ErrInvalidRegion):
		return CodeInvalidRegion
	case errors.Is(err, ErrInferenceFailed):
		return CodeInferenceFailed
	}
	return CodePipelineFailed
}

// WrapInference tags an engine failure with ErrInferenceFailed unless it
// already carries a more specific kind or is a context cancellation.
func WrapInference(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if CodeOf(err) != CodePipelineFailed {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInferenceFailed, err)
}
