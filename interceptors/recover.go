package interceptors

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// RecoveredError is the error Recover puts in place of a panic.
type RecoveredError struct {
	Method string
	Panic  *servicebridge.PanicError
}

func (e *RecoveredError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Method, e.Panic.Value)
}

func (e *RecoveredError) Unwrap() error {
	return e.Panic
}

// Recover turns a panic of the target into a RecoveredError for methods
// that return an error. Other methods keep panicking, since they have no way
// to report the failure.
type Recover struct {
	Logger logr.Logger
}

// NewRecover creates a Recover interceptor.
func NewRecover(logger logr.Logger) *Recover {
	return &Recover{Logger: logger}
}

func (r *Recover) Name() string {
	return "recover"
}

func (r *Recover) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	ret := next(inv)

	var panicErr *servicebridge.PanicError
	if !inv.Method().ReturnsError || !errors.As(ret.Err(), &panicErr) {
		return ret
	}

	r.Logger.Error(panicErr, "recovered panic", "method", inv.Method().String(), "stack", string(panicErr.Stack))
	ret.SetErr(&RecoveredError{Method: inv.Method().String(), Panic: panicErr})
	return ret
}
