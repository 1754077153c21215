// Package errors defines the rich, fluent error types the pipeline and query
// engine use to carry machine-readable codes alongside human context,
// following the same builder shape as the teacher corpus's validation
// errors: a struct with chained With* methods rather than ad-hoc fmt.Errorf.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/sakha-transit/tripgraph/types"
)

// WorkerError is returned by pipeline workers (spec §7 propagation policy):
// every worker wraps its body in an outer guard that converts uncaught
// failures into one of these with Code set to EXECUTION_ERROR.
type WorkerError struct {
	Code    types.WorkerErrorCode
	Worker  string
	Message string
	Cause   error
}

func (e *WorkerError) Error() string {
	var parts []string
	if e.Worker != "" {
		parts = append(parts, e.Worker)
	}
	parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	parts = append(parts, e.Message)
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("caused by: %s", e.Cause.Error()))
	}
	return strings.Join(parts, " ")
}

func (e *WorkerError) Unwrap() error { return e.Cause }

// NewWorkerError constructs a WorkerError for the given worker/code.
func NewWorkerError(worker string, code types.WorkerErrorCode, message string) *WorkerError {
	return &WorkerError{Worker: worker, Code: code, Message: message}
}

// WithCause attaches the underlying error and stack trace.
func (e *WorkerError) WithCause(cause error) *WorkerError {
	if cause != nil {
		e.Cause = pkgerrors.WithStack(cause)
	}
	return e
}

// WrapAsExecutionError converts any error raised inside a worker's body into
// the uniform EXECUTION_ERROR outcome described by spec §7: "each worker
// wraps its body in an outer guard that converts uncaught exceptions to
// EXECUTION_ERROR with the message embedded".
func WrapAsExecutionError(worker string, err error) *WorkerError {
	if err == nil {
		return nil
	}
	if we, ok := err.(*WorkerError); ok {
		return we
	}
	return NewWorkerError(worker, types.ErrExecutionError, err.Error()).WithCause(err)
}

// QueryError is returned by the route query engine (spec §7): validation,
// not-found, stale-graph, and internal failures are all surfaced as a typed
// code rather than a panic/throw, so the engine "never throws to the caller".
type QueryError struct {
	Code         types.QueryErrorCode
	Message      string
	MissingNodes []string
	Cause        error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.MissingNodes) > 0 {
		msg += fmt.Sprintf(" (missing: %s)", strings.Join(e.MissingNodes, ", "))
	}
	return msg
}

func (e *QueryError) Unwrap() error { return e.Cause }

// NewQueryError constructs a QueryError.
func NewQueryError(code types.QueryErrorCode, message string) *QueryError {
	return &QueryError{Code: code, Message: message}
}

// WithMissingNodes records which graph nodes were absent, distinguishing a
// stale-graph condition from a plain not-found (spec §4.H step 3).
func (e *QueryError) WithMissingNodes(nodes ...string) *QueryError {
	e.MissingNodes = append(e.MissingNodes, nodes...)
	return e
}

// WithCause attaches the underlying error.
func (e *QueryError) WithCause(cause error) *QueryError {
	e.Cause = cause
	return e
}

// RepositoryError wraps a transient persistence/KV-store failure (spec §7
// "Transient external failure"): the caller decides whether to retry.
type RepositoryError struct {
	Op    string
	Cause error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository: %s: %s", e.Op, e.Cause)
}

func (e *RepositoryError) Unwrap() error { return e.Cause }

// NewRepositoryError wraps cause with a stack trace and the failing operation name.
func NewRepositoryError(op string, cause error) *RepositoryError {
	return &RepositoryError{Op: op, Cause: pkgerrors.Wrap(cause, op)}
}

// ActiveRowExistsError is returned by deleteDataset/deleteGraph when the
// target row is the active one (spec §4.B deleteDataset contract) — a
// distinct error kind from a generic persistence failure so callers can
// react differently.
type ActiveRowExistsError struct {
	Entity string
	ID     string
}

func (e *ActiveRowExistsError) Error() string {
	return fmt.Sprintf("%s %s is active and cannot be deleted", e.Entity, e.ID)
}
