package entity

import (
	"fmt"
	"strings"
)

// ValidationError rejects malformed client input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfigurationError reports the exact required settings that are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// NotFoundError marks a sessionId with neither in-memory state nor
// durable artifacts.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// TransportError wraps a queue or storage failure so callers can tell
// infrastructure trouble from business failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PipelineStepError records which agent aborted the pipeline.
type PipelineStepError struct {
	Step string
	Err  error
}

func (e *PipelineStepError) Error() string {
	return fmt.Sprintf("pipeline step %s: %v", e.Step, e.Err)
}

func (e *PipelineStepError) Unwrap() error { return e.Err }
