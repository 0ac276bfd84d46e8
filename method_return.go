package servicebridge

import (
	"fmt"
	"reflect"
)

// MethodReturn is the outcome of an intercepted call as it travels back up
// the pipeline. Interceptors may inspect and replace the error, the result
// values and the output parameters.
//
// When Err is set the result values stay readable by interceptors, but the
// caller receives zero values next to the error.
type MethodReturn struct {
	invocation *MethodInvocation
	values     []reflect.Value
	err        error
	outputs    []*Output
}

func newMethodReturn(inv *MethodInvocation) *MethodReturn {
	results := inv.method.Results
	values := make([]reflect.Value, len(results))
	for i, t := range results {
		values[i] = reflect.Zero(t)
	}
	return &MethodReturn{invocation: inv, values: values}
}

// Invocation returns the call this return belongs to.
func (r *MethodReturn) Invocation() *MethodInvocation {
	return r.invocation
}

// Err returns the captured error, or nil on success.
func (r *MethodReturn) Err() error {
	return r.err
}

// SetErr replaces the captured error. Setting nil turns the return into a
// successful one.
func (r *MethodReturn) SetErr(err error) {
	r.err = err
}

// ReturnValue returns the first result, or nil when the method has none.
func (r *MethodReturn) ReturnValue() any {
	if len(r.values) == 0 {
		return nil
	}
	return r.values[0].Interface()
}

// ReturnValues returns every result, excluding the trailing error.
func (r *MethodReturn) ReturnValues() []any {
	values := make([]any, len(r.values))
	for i, v := range r.values {
		values[i] = v.Interface()
	}
	return values
}

// SetReturnValue replaces the first result.
func (r *MethodReturn) SetReturnValue(value any) error {
	if len(r.values) == 0 {
		return fmt.Errorf("%w: %s has no results", ErrResultCount, r.invocation.method)
	}
	v, err := assignable("result 0", r.invocation.method.Results[0], value)
	if err != nil {
		return err
	}
	r.values[0] = v
	return nil
}

// SetReturnValues replaces every result. The count must match the method's
// results, excluding the trailing error.
func (r *MethodReturn) SetReturnValues(values ...any) error {
	results := r.invocation.method.Results
	if len(values) != len(results) {
		return fmt.Errorf("%w: %s returns %d values, got %d", ErrResultCount, r.invocation.method, len(results), len(values))
	}

	converted := make([]reflect.Value, len(values))
	for i, value := range values {
		v, err := assignable(fmt.Sprintf("result %d", i), results[i], value)
		if err != nil {
			return err
		}
		converted[i] = v
	}
	r.values = converted
	return nil
}

// Outputs returns the output parameters of the call in declaration order.
func (r *MethodReturn) Outputs() []*Output {
	if r.outputs == nil {
		args := r.invocation.arguments
		r.outputs = make([]*Output, 0, args.Len())
		for _, arg := range args.items {
			if arg.ByRef {
				r.outputs = append(r.outputs, &Output{arg: arg})
			}
		}
	}
	return r.outputs
}

// Output returns the output parameter with the given name.
func (r *MethodReturn) Output(name string) (*Output, bool) {
	for _, out := range r.Outputs() {
		if out.Name() == name {
			return out, true
		}
	}
	return nil, false
}

func (r *MethodReturn) reflectValues() []reflect.Value {
	return r.values
}

// Output is an output parameter seen from the return path. It reads and
// writes the storage the caller passed, even when an interceptor replaced
// the argument's pointer, so every interceptor on the way out and the caller
// observe the same value.
type Output struct {
	arg *Argument
}

// Name returns the parameter name.
func (o *Output) Name() string {
	return o.arg.Name
}

// Position returns the parameter position.
func (o *Output) Position() int {
	return o.arg.Position
}

// Type returns the type of the value the parameter points to.
func (o *Output) Type() reflect.Type {
	return o.arg.Type.Elem()
}

// Value returns the current pointee, or nil when the caller passed a nil pointer.
func (o *Output) Value() any {
	if !o.arg.origin.IsValid() || o.arg.origin.IsNil() {
		return nil
	}
	return o.arg.origin.Elem().Interface()
}

// SetValue writes value into the caller's storage.
func (o *Output) SetValue(value any) error {
	if !o.arg.origin.IsValid() || o.arg.origin.IsNil() {
		return fmt.Errorf("%w: %s", ErrOutputNil, o.arg.Name)
	}
	v, err := assignable(o.arg.Name, o.Type(), value)
	if err != nil {
		return err
	}
	o.arg.origin.Elem().Set(v)
	return nil
}
