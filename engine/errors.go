// Copyright (C) 2026, Stablerail Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing operation for the requesting user.
	ErrNotFound = errors.New("operation not found")

	// ErrStepTimeout is the terminal message for steps stuck past the
	// reconciler's deadline.
	ErrStepTimeout = errors.New("Timeout waiting for deposit finality")
)

// ValidationError is a user-fixable rejection of a planning or submit
// request. Handlers map it to a 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a user-fixable request error.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
