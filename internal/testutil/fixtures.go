package testutil

import (
	"sync"
	"sync/atomic"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// Recorder collects events from interceptors in call order.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, len(r.events))
	copy(result, r.events)
	return result
}

// RecordingInterceptor records "<name>:before" and "<name>:after" around the call.
type RecordingInterceptor struct {
	Label    string
	Recorder *Recorder
}

func NewRecordingInterceptor(label string, recorder *Recorder) *RecordingInterceptor {
	return &RecordingInterceptor{Label: label, Recorder: recorder}
}

func (i *RecordingInterceptor) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	i.Recorder.Record(i.Label + ":before")
	ret := next(inv)
	i.Recorder.Record(i.Label + ":after")
	return ret
}

func (i *RecordingInterceptor) Name() string {
	return i.Label
}

// ShortCircuitInterceptor returns Values without calling further.
type ShortCircuitInterceptor struct {
	Values []any
}

func (i *ShortCircuitInterceptor) Invoke(inv *servicebridge.MethodInvocation, _ servicebridge.InvokeNext) *servicebridge.MethodReturn {
	ret, err := inv.CreateReturn(i.Values...)
	if err != nil {
		return inv.CreateExceptionReturn(err)
	}
	return ret
}

// MultiplyOutputs multiplies every int output parameter by Factor after the call.
type MultiplyOutputs struct {
	Factor int
}

func (i *MultiplyOutputs) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	ret := next(inv)
	for _, out := range ret.Outputs() {
		if v, ok := out.Value().(int); ok {
			if err := out.SetValue(v * i.Factor); err != nil {
				ret.SetErr(err)
			}
		}
	}
	return ret
}

// AddToOutputs adds Delta to every int output parameter after the call.
type AddToOutputs struct {
	Delta int
}

func (i *AddToOutputs) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	ret := next(inv)
	for _, out := range ret.Outputs() {
		if v, ok := out.Value().(int); ok {
			if err := out.SetValue(v + i.Delta); err != nil {
				ret.SetErr(err)
			}
		}
	}
	return ret
}

// FailingInterceptor returns Err without calling further.
type FailingInterceptor struct {
	Err error
}

func (i *FailingInterceptor) Invoke(inv *servicebridge.MethodInvocation, _ servicebridge.InvokeNext) *servicebridge.MethodReturn {
	return inv.CreateExceptionReturn(i.Err)
}

// ArgumentSetter replaces the argument at Position before the call.
type ArgumentSetter struct {
	Position int
	Value    any
}

func (i *ArgumentSetter) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	if err := inv.Arguments().At(i.Position).SetValue(i.Value); err != nil {
		return inv.CreateExceptionReturn(err)
	}
	return next(inv)
}

// CountingInterceptor counts the calls passing through it.
type CountingInterceptor struct {
	calls atomic.Int64
}

func (i *CountingInterceptor) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	i.calls.Add(1)
	return next(inv)
}

func (i *CountingInterceptor) Calls() int64 {
	return i.calls.Load()
}

// InjectedInterceptor receives its Recorder by property injection.
type InjectedInterceptor struct {
	Recorder *Recorder `inject:""`
	Optional *Plain    `inject:"missing,optional"`
}

func (i *InjectedInterceptor) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	i.Recorder.Record("injected:" + inv.Method().Name)
	return next(inv)
}

// NilReturningInterceptor breaks the interceptor contract by returning nil.
type NilReturningInterceptor struct{}

func (NilReturningInterceptor) Invoke(*servicebridge.MethodInvocation, servicebridge.InvokeNext) *servicebridge.MethodReturn {
	return nil
}
