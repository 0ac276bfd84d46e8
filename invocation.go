package servicebridge

import (
	"context"
	"reflect"
	"strconv"

	"github.com/google/uuid"

	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

// MethodIdentity is the pipeline cache key of one method.
//
// Service is the type a caller sees (an interface or a func type) and
// Implementation the concrete target type. Type-wide initialization with
// InitializePipeline uses the same type for both.
type MethodIdentity struct {
	Service        reflect.Type
	Implementation reflect.Type
	Name           string
}

// String returns "Service.Name" for diagnostics.
func (id MethodIdentity) String() string {
	return formatType(id.Service) + "." + id.Name
}

// Parameter describes one declared parameter of an intercepted method.
type Parameter struct {
	Name     string
	Type     reflect.Type
	Position int

	// ByRef marks an output parameter: a pointer to a non-struct value whose
	// pointee is written back to the caller.
	ByRef bool
}

// MethodDescriptor describes an intercepted method.
type MethodDescriptor struct {
	Name           string
	Service        reflect.Type
	Implementation reflect.Type

	// Type is the func signature of the method without a receiver.
	Type reflect.Type

	Parameters []Parameter

	// Results lists the result types, excluding a trailing error.
	Results []reflect.Type

	ReturnsError bool
	Variadic     bool
}

// Identity returns the pipeline cache key for this method.
func (m *MethodDescriptor) Identity() MethodIdentity {
	return MethodIdentity{Service: m.Service, Implementation: m.Implementation, Name: m.Name}
}

// String returns "Service.Name".
func (m *MethodDescriptor) String() string {
	return m.Identity().String()
}

func newMethodDescriptor(service, impl reflect.Type, info reflection.MethodInfo, names []string) *MethodDescriptor {
	desc := &MethodDescriptor{
		Name:           info.Name,
		Service:        service,
		Implementation: impl,
		Type:           info.Type,
		Parameters:     make([]Parameter, len(info.Parameters)),
		Results:        info.Results,
		ReturnsError:   info.ReturnsError,
		Variadic:       info.Variadic,
	}

	for i, p := range info.Parameters {
		name := "arg" + strconv.Itoa(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		desc.Parameters[i] = Parameter{
			Name:     name,
			Type:     p.Type,
			Position: p.Position,
			ByRef:    p.ByRef,
		}
	}

	return desc
}

// Argument is one positional argument of an in-flight call.
type Argument struct {
	Parameter
	value reflect.Value

	// origin is the pointer the caller passed for a by-ref parameter.
	origin reflect.Value
}

// Value returns the current argument value.
func (a *Argument) Value() any {
	if !a.value.IsValid() {
		return nil
	}
	return a.value.Interface()
}

// SetValue replaces the argument. The new value is seen by every later
// interceptor and by the real call. A nil value stores the zero value of the
// declared type. Replacing the pointer of a by-ref argument does not detach
// the caller: whatever the real call writes is copied back to the caller's
// storage.
func (a *Argument) SetValue(value any) error {
	v, err := assignable(a.Name, a.Type, value)
	if err != nil {
		return err
	}
	a.value = v
	return nil
}

// Arguments is the ordered argument collection of a call. Its length and
// order always match the method's declared parameters.
type Arguments struct {
	items []*Argument
}

// Len returns the number of arguments.
func (a *Arguments) Len() int {
	return len(a.items)
}

// At returns the argument at position i.
func (a *Arguments) At(i int) *Argument {
	return a.items[i]
}

// Get returns the argument with the given parameter name.
func (a *Arguments) Get(name string) (*Argument, bool) {
	for _, arg := range a.items {
		if arg.Name == name {
			return arg, true
		}
	}
	return nil, false
}

// Values returns a copy of the current argument values.
func (a *Arguments) Values() []any {
	values := make([]any, len(a.items))
	for i, arg := range a.items {
		values[i] = arg.Value()
	}
	return values
}

// syncOutputs points by-ref arguments back at the caller's storage, copying
// the pointee of a replaced pointer into it.
func (a *Arguments) syncOutputs() {
	for _, arg := range a.items {
		if !arg.ByRef || !arg.origin.IsValid() || arg.origin.IsNil() {
			continue
		}
		if arg.value.IsValid() && !arg.value.IsNil() && arg.value.Pointer() != arg.origin.Pointer() {
			arg.origin.Elem().Set(arg.value.Elem())
		}
		arg.value = arg.origin
	}
}

func (a *Arguments) reflectValues() []reflect.Value {
	values := make([]reflect.Value, len(a.items))
	for i, arg := range a.items {
		values[i] = arg.value
	}
	return values
}

// MethodInvocation is one intercepted call in flight. It is created once per
// call by the dispatcher and is never shared between calls.
type MethodInvocation struct {
	method    *MethodDescriptor
	target    any
	arguments *Arguments
	container ServiceContainer
	id        string
}

// NewMethodInvocation creates an invocation for method with the given
// positional arguments. Backends use it when adapting a native call;
// the arguments must match the declared parameters.
func NewMethodInvocation(method *MethodDescriptor, target any, container ServiceContainer, args ...any) (*MethodInvocation, error) {
	if len(args) != len(method.Parameters) {
		return nil, &SignatureMismatchError{Method: method.Name, Cause: ErrResultCount}
	}

	values := make([]reflect.Value, len(args))
	for i, arg := range args {
		v, err := assignable(method.Parameters[i].Name, method.Parameters[i].Type, arg)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	return newInvocation(method, target, container, values), nil
}

func newInvocation(method *MethodDescriptor, target any, container ServiceContainer, args []reflect.Value) *MethodInvocation {
	items := make([]*Argument, len(method.Parameters))
	for i, p := range method.Parameters {
		items[i] = &Argument{Parameter: p, value: args[i]}
		if p.ByRef {
			items[i].origin = args[i]
		}
	}

	return &MethodInvocation{
		method:    method,
		target:    target,
		arguments: &Arguments{items: items},
		container: container,
	}
}

// Method returns the descriptor of the called method.
func (inv *MethodInvocation) Method() *MethodDescriptor {
	return inv.method
}

// Target returns the object the call is forwarded to. It is nil for calls
// without a receiver object.
func (inv *MethodInvocation) Target() any {
	return inv.target
}

// Arguments returns the mutable argument collection.
func (inv *MethodInvocation) Arguments() *Arguments {
	return inv.arguments
}

// Container returns the container whose engine dispatched the call.
func (inv *MethodInvocation) Container() ServiceContainer {
	return inv.container
}

// ID returns a correlation id for this call, generated on first use.
func (inv *MethodInvocation) ID() string {
	if inv.id == "" {
		inv.id = uuid.NewString()
	}
	return inv.id
}

// Context returns the call's context: the first argument when it is a
// context.Context, otherwise context.Background().
func (inv *MethodInvocation) Context() context.Context {
	if inv.arguments.Len() > 0 {
		first := inv.arguments.At(0)
		if reflection.IsContext(first.Type) {
			if ctx, ok := first.Value().(context.Context); ok && ctx != nil {
				return ctx
			}
		}
	}
	return context.Background()
}

// SetContext replaces the context argument and reports whether the method
// takes one.
func (inv *MethodInvocation) SetContext(ctx context.Context) bool {
	if inv.arguments.Len() == 0 || !reflection.IsContext(inv.arguments.At(0).Type) {
		return false
	}
	return inv.arguments.At(0).SetValue(ctx) == nil
}

// CreateReturn builds a successful return without calling further down the
// pipeline. values must match the method's results, excluding the error.
func (inv *MethodInvocation) CreateReturn(values ...any) (*MethodReturn, error) {
	ret := newMethodReturn(inv)
	if err := ret.SetReturnValues(values...); err != nil {
		return nil, err
	}
	return ret, nil
}

// CreateExceptionReturn builds a failed return carrying err.
func (inv *MethodInvocation) CreateExceptionReturn(err error) *MethodReturn {
	ret := newMethodReturn(inv)
	ret.SetErr(err)
	return ret
}

// assignable converts value into a reflect.Value of type t.
func assignable(name string, t reflect.Type, value any) (reflect.Value, error) {
	if value == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, &ArgumentTypeError{Name: name, Expected: t}
	}

	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, &ArgumentTypeError{Name: name, Expected: t, Actual: v.Type()}
	}

	if v.Type() != t {
		converted := reflect.New(t).Elem()
		converted.Set(v)
		return converted, nil
	}
	return v, nil
}
