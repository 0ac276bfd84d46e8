package servicebridge

import (
	"fmt"
	"reflect"
	"sync"
)

// Declaration names an interceptor that applies to a method or a whole type.
// The order of declarations is the order of the pipeline.
type Declaration interface {
	// CreateInterceptor produces the interceptor, resolving it from c when
	// the declaration refers to a container registration.
	CreateInterceptor(c ServiceContainer) (Interceptor, error)

	String() string
}

// DeclarationOption configures a container-resolved declaration.
type DeclarationOption interface {
	applyDeclarationOption(*declarationOptions)
}

type declarationOptions struct {
	lifetime Lifetime
}

type declarationOptionFunc func(*declarationOptions)

func (f declarationOptionFunc) applyDeclarationOption(o *declarationOptions) {
	f(o)
}

// PerCall resolves the interceptor on every intercepted call instead of once
// per pipeline.
func PerCall() DeclarationOption {
	return WithLifetime(CallLifetime)
}

// WithLifetime sets the interceptor lifetime of a declaration.
func WithLifetime(l Lifetime) DeclarationOption {
	return declarationOptionFunc(func(o *declarationOptions) {
		o.lifetime = l
	})
}

func newDeclarationOptions(opts []DeclarationOption) declarationOptions {
	var options declarationOptions
	for _, opt := range opts {
		if opt != nil {
			opt.applyDeclarationOption(&options)
		}
	}
	return options
}

// lifetimeOf returns the lifetime of a declaration.
func lifetimeOf(d Declaration) Lifetime {
	if l, ok := d.(interface{ Lifetime() Lifetime }); ok {
		return l.Lifetime()
	}
	return PipelineLifetime
}

// Use declares a ready-made interceptor instance. Before its first use the
// instance receives property injection from the container (see InjectFields).
func Use(interceptor Interceptor) Declaration {
	return &instanceDeclaration{interceptor: interceptor}
}

// UseFunc declares a function interceptor under a display name.
func UseFunc(name string, fn InterceptorFunc) Declaration {
	if fn == nil {
		return &instanceDeclaration{}
	}
	return &instanceDeclaration{interceptor: WithName(name, fn)}
}

type instanceDeclaration struct {
	interceptor Interceptor
	once        sync.Once
	err         error
}

func (d *instanceDeclaration) CreateInterceptor(c ServiceContainer) (Interceptor, error) {
	if d.interceptor == nil {
		return nil, ErrInterceptorNil
	}
	d.once.Do(func() {
		d.err = InjectFields(d.interceptor, c)
	})
	if d.err != nil {
		return nil, d.err
	}
	return d.interceptor, nil
}

func (d *instanceDeclaration) String() string {
	if d.interceptor == nil {
		return "Use(nil)"
	}
	return fmt.Sprintf("Use(%s)", interceptorName(d.interceptor))
}

// UseType declares an interceptor resolved from the container by type.
func UseType(t reflect.Type, opts ...DeclarationOption) Declaration {
	return &typeDeclaration{serviceType: t, options: newDeclarationOptions(opts)}
}

// UseTypeOf is the generic form of UseType.
func UseTypeOf[T any](opts ...DeclarationOption) Declaration {
	return UseType(reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

type typeDeclaration struct {
	serviceType reflect.Type
	options     declarationOptions
}

func (d *typeDeclaration) CreateInterceptor(c ServiceContainer) (Interceptor, error) {
	if d.serviceType == nil {
		return nil, ErrServiceTypeNil
	}
	if c == nil {
		return nil, ErrContainerNil
	}

	instance, err := c.GetInstance(d.serviceType, "")
	if err != nil {
		return nil, err
	}
	return asInterceptor(instance)
}

func (d *typeDeclaration) Lifetime() Lifetime {
	return d.options.lifetime
}

type typeKey struct {
	serviceType reflect.Type
	lifetime    Lifetime
}

// declarationKey makes two declarations of the same type and lifetime equal.
func (d *typeDeclaration) declarationKey() any {
	return typeKey{serviceType: d.serviceType, lifetime: d.options.lifetime}
}

func (d *typeDeclaration) String() string {
	return fmt.Sprintf("UseType(%s)", formatType(d.serviceType))
}

// UseNamed declares an interceptor registered in the container under
// InterceptorType with the given name.
func UseNamed(name string, opts ...DeclarationOption) Declaration {
	return &namedDeclaration{name: name, options: newDeclarationOptions(opts)}
}

type namedDeclaration struct {
	name    string
	options declarationOptions
}

func (d *namedDeclaration) CreateInterceptor(c ServiceContainer) (Interceptor, error) {
	if d.name == "" {
		return nil, ErrConfigNameEmpty
	}
	if c == nil {
		return nil, ErrContainerNil
	}

	instance, err := c.GetInstance(InterceptorType, d.name)
	if err != nil {
		return nil, err
	}
	return asInterceptor(instance)
}

func (d *namedDeclaration) Lifetime() Lifetime {
	return d.options.lifetime
}

type namedKey struct {
	name     string
	lifetime Lifetime
}

func (d *namedDeclaration) declarationKey() any {
	return namedKey{name: d.name, lifetime: d.options.lifetime}
}

func (d *namedDeclaration) String() string {
	return fmt.Sprintf("UseNamed(%q)", d.name)
}

// UseFactory declares an interceptor built by fn. With PerCall, fn runs on
// every intercepted call.
func UseFactory(name string, fn func(c ServiceContainer) (Interceptor, error), opts ...DeclarationOption) Declaration {
	return &factoryDeclaration{name: name, fn: fn, options: newDeclarationOptions(opts)}
}

type factoryDeclaration struct {
	name    string
	fn      func(c ServiceContainer) (Interceptor, error)
	options declarationOptions
}

func (d *factoryDeclaration) CreateInterceptor(c ServiceContainer) (Interceptor, error) {
	if d.fn == nil {
		return nil, ErrInterceptorNil
	}
	return d.fn(c)
}

func (d *factoryDeclaration) Lifetime() Lifetime {
	return d.options.lifetime
}

func (d *factoryDeclaration) String() string {
	return fmt.Sprintf("UseFactory(%q)", d.name)
}

func asInterceptor(instance any) (Interceptor, error) {
	interceptor, ok := instance.(Interceptor)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotInterceptor, instance)
	}
	return interceptor, nil
}
