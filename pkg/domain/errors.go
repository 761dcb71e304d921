package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrCheckpointNotFound is returned when a thread has no checkpoint in the store.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// ErrStaleCheckpoint is returned when a write carries a step counter that is not
// newer than the stored one (e.g. two runs resumed the same thread concurrently).
var ErrStaleCheckpoint = errors.New("stale checkpoint")

// ErrInvalidGraph is returned when a graph definition fails compilation.
var ErrInvalidGraph = errors.New("invalid graph configuration")

// ErrDuplicateTool is returned when a tool name is registered twice.
var ErrDuplicateTool = errors.New("duplicate tool")

// ErrNoToolCalls is returned when the tool node runs without pending tool calls.
var ErrNoToolCalls = errors.New("last message has no tool calls")

// ErrNoInput is returned when a thread has no checkpoint and no initial message was supplied.
var ErrNoInput = errors.New("no checkpoint found and no initial message supplied")

// ErrPendingSteps is returned when new input is offered to a thread whose last
// run stopped before reaching the entry node again (e.g. tool calls still pending).
var ErrPendingSteps = errors.New("thread has pending steps")

// Error kinds that abort a run.
var (
	ErrModelInvocation   = errors.New("model invocation failed")
	ErrTimeout           = errors.New("step timed out")
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	ErrCheckpointIO      = errors.New("checkpoint i/o failed")
)

// Error kinds that the tool node recovers locally.
var (
	ErrUnknownTool        = errors.New("unknown tool")
	ErrMalformedArguments = errors.New("malformed arguments")
	ErrToolExecution      = errors.New("tool execution failed")
)

// ErrorKind names a category of the error taxonomy.
type ErrorKind string

const (
	KindModelInvocation      ErrorKind = "ModelInvocationError"
	KindUnknownTool          ErrorKind = "UnknownTool"
	KindMalformedArguments   ErrorKind = "MalformedArguments"
	KindToolExecutionFailure ErrorKind = "ToolExecutionFailure"
	KindTimeout              ErrorKind = "TimeoutError"
	KindStepLimitExceeded    ErrorKind = "StepLimitExceeded"
	KindCheckpointIO         ErrorKind = "CheckpointIOError"
	KindCanceled             ErrorKind = "Canceled"
	KindConfiguration        ErrorKind = "ConfigurationError"
	KindContractViolation    ErrorKind = "ContractViolation"
	KindUnknown              ErrorKind = "Unknown"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindModelInvocation:
		return ErrModelInvocation
	case KindUnknownTool:
		return ErrUnknownTool
	case KindMalformedArguments:
		return ErrMalformedArguments
	case KindToolExecutionFailure:
		return ErrToolExecution
	case KindTimeout:
		return ErrTimeout
	case KindStepLimitExceeded:
		return ErrStepLimitExceeded
	case KindCheckpointIO:
		return ErrCheckpointIO
	case KindCanceled:
		return context.Canceled
	case KindConfiguration:
		return ErrInvalidGraph
	case KindContractViolation:
		return ErrNoToolCalls
	}
	return nil
}

// Recoverable reports whether the tool node turns this kind into a tool result
// instead of aborting the run.
func (k ErrorKind) Recoverable() bool {
	return k == KindUnknownTool || k == KindMalformedArguments || k == KindToolExecutionFailure
}

// KindOf classifies err into the taxonomy.
func KindOf(err error) ErrorKind {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Kind
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelInvocation):
		return KindModelInvocation
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrStepLimitExceeded):
		return KindStepLimitExceeded
	case errors.Is(err, ErrCheckpointIO), errors.Is(err, ErrStaleCheckpoint):
		return KindCheckpointIO
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrInvalidGraph):
		return KindConfiguration
	case errors.Is(err, ErrNoToolCalls):
		return KindContractViolation
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool
	case errors.Is(err, ErrMalformedArguments):
		return KindMalformedArguments
	case errors.Is(err, ErrToolExecution):
		return KindToolExecutionFailure
	}
	return KindUnknown
}

// ToolError describes a per-call failure inside the tool node.
// Its message becomes the content of the error-flagged tool result.
type ToolError struct {
	Kind   ErrorKind
	Tool   string
	CallID string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: tool '%s': %v", e.Kind, e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error kind.
func (e *ToolError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// RunError is returned when a run aborts. The last checkpoint written before
// the failing step remains valid and resumable.
type RunError struct {
	Kind     ErrorKind
	ThreadID string

	// Step is the number of the step that failed.
	Step int

	// Completed is the step counter of the last checkpoint written.
	Completed int

	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run '%s' aborted at step %d (%s): %v", e.ThreadID, e.Step, e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error kind.
func (e *RunError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}
