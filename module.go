package servicebridge

import (
	"fmt"
	"reflect"

	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

// ModuleOption represents a registration action within a module.
type ModuleOption func(*Registry) error

// ModuleError reports the module whose registration failed.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %s: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// NewModule groups interception declarations and proxy registrations so they
// can be installed into a registry together.
//
// Example:
//
//	var ObservabilityModule = servicebridge.NewModule("observability",
//	    servicebridge.InterceptAll[Calculator](servicebridge.UseNamed("logging")),
//	    servicebridge.InterceptMethod[Calculator]("Add", servicebridge.UseNamed("timing")),
//	)
//
//	var AppModule = servicebridge.NewModule("app",
//	    ObservabilityModule,
//	    servicebridge.ProxyOf(NewCalculatorProxy),
//	)
//
//	err := registry.Install(AppModule)
func NewModule(name string, builders ...ModuleOption) ModuleOption {
	return func(r *Registry) error {
		for _, builder := range builders {
			if builder == nil {
				continue
			}

			if err := builder(r); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// Install runs modules against the registry in order and stops at the first error.
func (r *Registry) Install(modules ...ModuleOption) error {
	for _, m := range modules {
		if m == nil {
			continue
		}
		if err := m(r); err != nil {
			return err
		}
	}
	return nil
}

// InterceptAll creates a ModuleOption adding type-wide declarations for T.
func InterceptAll[T any](decls ...Declaration) ModuleOption {
	return func(r *Registry) error {
		For[T](r).All(decls...)
		return nil
	}
}

// InterceptMethod creates a ModuleOption adding declarations to one method of T.
func InterceptMethod[T any](method string, decls ...Declaration) ModuleOption {
	return func(r *Registry) error {
		t := reflect.TypeOf((*T)(nil)).Elem()
		if !hasMethod(t, method) {
			return fmt.Errorf("%w: %s.%s", ErrMethodNotFound, formatType(t), method)
		}
		r.Intercept(t).Method(method, decls...)
		return nil
	}
}

// NameParameters creates a ModuleOption naming the parameters of one method of T.
func NameParameters[T any](method string, names ...string) ModuleOption {
	return func(r *Registry) error {
		For[T](r).Parameters(method, names...)
		return nil
	}
}

// ProxyOf creates a ModuleOption registering the proxy factory of T.
func ProxyOf[T any](factory func(target T, bind BindFunc) (T, error)) ModuleOption {
	return func(r *Registry) error {
		return RegisterProxy(r, factory)
	}
}

func hasMethod(t reflect.Type, name string) bool {
	if t.Kind() == reflect.Func {
		return reflection.FuncName(t) == name
	}
	_, ok := t.MethodByName(name)
	return ok
}
