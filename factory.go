package servicebridge

import "reflect"

// InterceptorFactory creates interceptors from declarations while a pipeline
// is built.
type InterceptorFactory interface {
	Create(decl Declaration, c ServiceContainer) (Interceptor, error)
}

// InterceptorFactoryFunc adapts a function to InterceptorFactory.
type InterceptorFactoryFunc func(decl Declaration, c ServiceContainer) (Interceptor, error)

// Create calls f.
func (f InterceptorFactoryFunc) Create(decl Declaration, c ServiceContainer) (Interceptor, error) {
	return f(decl, c)
}

// DefaultFactory asks the declaration to create its interceptor and rejects
// nil results.
var DefaultFactory InterceptorFactory = InterceptorFactoryFunc(func(decl Declaration, c ServiceContainer) (Interceptor, error) {
	if decl == nil {
		return nil, ErrDeclarationNil
	}

	interceptor, err := decl.CreateInterceptor(c)
	if err != nil {
		return nil, err
	}
	if isNilInterceptor(interceptor) {
		return nil, ErrInterceptorNil
	}
	return interceptor, nil
})

func isNilInterceptor(i Interceptor) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// perCallInterceptor creates a fresh interceptor from the container on every call.
type perCallInterceptor struct {
	decl    Declaration
	factory InterceptorFactory
	method  *MethodDescriptor
}

func (p *perCallInterceptor) Invoke(inv *MethodInvocation, next InvokeNext) *MethodReturn {
	interceptor, err := p.factory.Create(p.decl, inv.Container())
	if err != nil {
		return inv.CreateExceptionReturn(&ConfigurationError{
			Service:     p.method.Service,
			Method:      p.method.Name,
			Declaration: p.decl.String(),
			Cause:       err,
		})
	}
	return interceptor.Invoke(inv, next)
}

func (p *perCallInterceptor) Name() string {
	return p.decl.String()
}
