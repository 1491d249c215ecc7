// Package apperr defines the error taxonomy shared by the voting core.
package apperr

import (
	"context"
	"errors"
)

// Kind classifies an error for retry and display decisions.
type Kind int

const (
	// KindStorage covers persistence read/write/parse failures. The core
	// degrades to in-memory operation when these occur.
	KindStorage Kind = iota
	// KindValidation covers local precondition failures (already voted,
	// vote limit reached). Never retried automatically.
	KindValidation
	// KindNetwork covers transport failures on remote calls.
	KindNetwork
	// KindTimeout covers remote calls that exceeded their deadline.
	KindTimeout
	// KindComponent covers unexpected failures with no better home.
	KindComponent
)

// String returns the stable code for the kind.
func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	default:
		return "component"
	}
}

// AppError carries a classified, user-presentable error. Recoverable errors
// may carry a Retry closure that re-attempts the failed operation.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
	Retry   func(context.Context) error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Recoverable reports whether the error can be retried or degraded past.
// Validation failures without a retry action are final until the user
// changes something; everything else in the taxonomy is recoverable.
func (e *AppError) Recoverable() bool {
	if e == nil {
		return false
	}
	if e.Retry != nil {
		return true
	}
	return e.Kind != KindValidation
}

func Storage(code, msg string, err error) *AppError {
	return &AppError{Kind: KindStorage, Code: code, Message: msg, Err: err}
}

func Validation(code, msg string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: msg}
}

func Network(code, msg string, err error) *AppError {
	return &AppError{Kind: KindNetwork, Code: code, Message: msg, Err: err}
}

func Timeout(code, msg string, err error) *AppError {
	return &AppError{Kind: KindTimeout, Code: code, Message: msg, Err: err}
}

func Component(code, msg string, err error) *AppError {
	return &AppError{Kind: KindComponent, Code: code, Message: msg, Err: err}
}

// FromError extracts an *AppError or wraps err as a component failure.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Component("unexpected", err.Error(), err)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
