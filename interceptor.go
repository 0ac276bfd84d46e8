package servicebridge

import (
	"fmt"
	"reflect"
)

// InvokeNext continues a call down the pipeline. Calling it runs every later
// interceptor and finally the target. An interceptor may call it zero times
// (short-circuit), once, or several times (retry).
type InvokeNext func(inv *MethodInvocation) *MethodReturn

// Interceptor is a behavior wrapped around intercepted method calls.
//
// Interceptors with PipelineLifetime are shared by every call of a method and
// must be safe for concurrent use.
type Interceptor interface {
	Invoke(inv *MethodInvocation, next InvokeNext) *MethodReturn
}

// InterceptorFunc adapts a plain function to Interceptor.
type InterceptorFunc func(inv *MethodInvocation, next InvokeNext) *MethodReturn

// Invoke calls f.
func (f InterceptorFunc) Invoke(inv *MethodInvocation, next InvokeNext) *MethodReturn {
	return f(inv, next)
}

// Named is implemented by interceptors that report a readable name in logs
// and diagnostics.
type Named interface {
	Name() string
}

// InterceptorType is the reflected Interceptor interface. Named interceptor
// registrations are resolved from a container under this type.
var InterceptorType = reflect.TypeOf((*Interceptor)(nil)).Elem()

// namedInterceptor attaches a name to an interceptor.
type namedInterceptor struct {
	Interceptor
	name string
}

func (n namedInterceptor) Name() string {
	return n.name
}

// WithName returns an interceptor that reports name from Name().
func WithName(name string, interceptor Interceptor) Interceptor {
	return namedInterceptor{Interceptor: interceptor, name: name}
}

// interceptorName returns the display name of an interceptor.
func interceptorName(i Interceptor) string {
	if n, ok := i.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", i)
}
