package interceptors

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// Retry calls the rest of the pipeline again while it fails, waiting as the
// backoff policy says. Panics are never retried. When every attempt fails
// the last return is passed on.
type Retry struct {
	// NewBackOff returns a fresh policy for each call. The policy is bound
	// to the call's context, so cancelling the context stops retrying.
	NewBackOff func() backoff.BackOff

	// Retryable reports whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool

	Logger logr.Logger
}

// NewRetry creates a Retry interceptor with at most three retries and
// exponential backoff.
func NewRetry() *Retry {
	return &Retry{
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		},
		Logger: logr.Discard(),
	}
}

func (r *Retry) Name() string {
	return "retry"
}

func (r *Retry) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	var ret *servicebridge.MethodReturn

	operation := func() error {
		ret = next(inv)
		err := ret.Err()
		if err == nil {
			return nil
		}

		var panicErr *servicebridge.PanicError
		if errors.As(err, &panicErr) || (r.Retryable != nil && !r.Retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.Logger.V(1).Info("retrying call", "method", inv.Method().String(), "error", err.Error(), "wait", wait)
	}

	policy := r.backOff()
	_ = backoff.RetryNotify(operation, backoff.WithContext(policy, inv.Context()), notify)
	return ret
}

func (r *Retry) backOff() backoff.BackOff {
	if r.NewBackOff == nil {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	}
	return r.NewBackOff()
}
