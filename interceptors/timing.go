package interceptors

import (
	"time"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// ObserveFunc receives the duration and outcome of a call.
type ObserveFunc func(id servicebridge.MethodIdentity, elapsed time.Duration, err error)

// Timing measures calls and hands the result to Observe.
type Timing struct {
	Observe ObserveFunc

	now func() time.Time
}

// NewTiming creates a Timing interceptor.
func NewTiming(observe ObserveFunc) *Timing {
	return &Timing{Observe: observe, now: time.Now}
}

func (t *Timing) Name() string {
	return "timing"
}

func (t *Timing) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	now := t.now
	if now == nil {
		now = time.Now
	}

	start := now()
	ret := next(inv)
	if t.Observe != nil {
		t.Observe(inv.Method().Identity(), now().Sub(start), ret.Err())
	}
	return ret
}
