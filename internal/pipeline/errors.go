package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the closed set of ways a recognition request can fail.
type Kind string

const (
	KindInvalidImage              Kind = "invalid_image"
	KindBoardNotFound             Kind = "board_not_found"
	KindPartition                 Kind = "partition_error"
	KindClassificationUnavailable Kind = "classification_unavailable"
	KindTimeout                   Kind = "timeout"
)

// Retryable reports whether the same request may succeed later or with a better photo.
func (k Kind) Retryable() bool {
	switch k {
	case KindBoardNotFound, KindClassificationUnavailable, KindTimeout:
		return true
	}
	return false
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// stageError classifies a stage failure, preferring a timeout when the context is done.
func stageError(ctx context.Context, kind Kind, op string, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if ctxErr == nil {
			ctxErr = err
		}
		return newError(KindTimeout, op, ctxErr)
	}
	return newError(kind, op, err)
}
