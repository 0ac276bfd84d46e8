package servicebridge

import (
	"reflect"

	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

// dispatcher returns the implementation of a proxied method: it runs the
// call through the method's pipeline and maps the outcome back to the
// method's native results.
func (e *Engine) dispatcher(desc *MethodDescriptor, target any, method reflect.Value) func([]reflect.Value) []reflect.Value {
	id := desc.Identity()
	fnType := method.Type()

	return func(args []reflect.Value) []reflect.Value {
		inv := newInvocation(desc, target, e.container, args)
		if e.container != nil && e.container.IsDisposed() {
			return nativeResults(fnType, inv.CreateExceptionReturn(ErrContainerDisposed))
		}

		p := e.manager.GetPipeline(id)
		if p.IsSentinel() {
			if err := e.manager.InitializePipelineFor(desc.Service, desc.Implementation, e.container); err != nil {
				return nativeResults(fnType, inv.CreateExceptionReturn(err))
			}
			p = e.manager.GetPipeline(id)
		}

		return nativeResults(fnType, p.Invoke(inv, terminal(method)))
	}
}

// terminal is the innermost continuation: it calls the target. A panic is
// captured as *PanicError and a non-nil trailing error as Err.
func terminal(method reflect.Value) InvokeNext {
	return func(inv *MethodInvocation) (ret *MethodReturn) {
		ret = newMethodReturn(inv)
		defer func() {
			if r := recover(); r != nil {
				ret.SetErr(newPanicError(r))
			}
		}()

		args := inv.arguments.reflectValues()
		var out []reflect.Value
		if inv.method.Variadic {
			out = method.CallSlice(args)
		} else {
			out = method.Call(args)
		}

		inv.arguments.syncOutputs()

		n := len(inv.method.Results)
		for i := 0; i < n; i++ {
			ret.values[i] = out[i]
		}
		if inv.method.ReturnsError {
			if errValue := out[n]; !errValue.IsNil() {
				ret.SetErr(errValue.Interface().(error))
			}
		}
		return ret
	}
}

// nativeResults converts a MethodReturn to the results of fnType. A captured
// panic is re-raised with its original value, and an error on a method
// without an error result is raised as a panic. A failed return yields zero
// results next to the error.
func nativeResults(fnType reflect.Type, ret *MethodReturn) []reflect.Value {
	err := ret.Err()
	if pe, ok := err.(*PanicError); ok {
		panic(pe.Value)
	}

	desc := ret.invocation.method
	if err != nil && !desc.ReturnsError {
		panic(err)
	}

	out := make([]reflect.Value, fnType.NumOut())
	values := ret.reflectValues()
	for i := range desc.Results {
		if err != nil {
			out[i] = reflect.Zero(fnType.Out(i))
			continue
		}
		out[i] = exactly(values[i], fnType.Out(i))
	}
	if desc.ReturnsError {
		errValue := reflect.Zero(reflection.ErrorType())
		if err != nil {
			errValue = reflect.ValueOf(&err).Elem()
		}
		out[len(desc.Results)] = errValue
	}
	return out
}

// exactly returns v as a value of type t.
func exactly(v reflect.Value, t reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(t)
	}
	if v.Type() == t {
		return v
	}
	converted := reflect.New(t).Elem()
	converted.Set(v)
	return converted
}
