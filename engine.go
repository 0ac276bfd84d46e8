package servicebridge

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/go-logr/logr"

	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

// BindFunc fills the func fields of a method table with dispatchers. The
// table is a pointer to a struct whose exported func fields are named after
// the service methods and have the same signature.
type BindFunc func(table any) error

// Engine is the interception engine of one container. Container backends
// ask it whether a service is intercepted and let it build the proxy.
type Engine struct {
	container ServiceContainer
	options   *Options
	registry  *Registry
	manager   *PipelineManager
	logger    logr.Logger

	pendingMu sync.Mutex
	pending   map[pairKey]struct{}
}

// NewEngine creates the engine of container c.
func NewEngine(c ServiceContainer, opts ...Option) *Engine {
	options := NewOptions(opts...)
	return &Engine{
		container: c,
		options:   options,
		registry:  options.Registry,
		manager:   newPipelineManager(options),
		logger:    options.Logger.WithName("interception"),
		pending:   make(map[pairKey]struct{}),
	}
}

// ID returns the identifier of the engine's pipeline manager.
func (e *Engine) ID() string {
	return e.manager.ID()
}

// Container returns the container the engine belongs to.
func (e *Engine) Container() ServiceContainer {
	return e.container
}

// Options returns the options the engine was created with.
func (e *Engine) Options() *Options {
	return e.options
}

// Registry returns the declaration registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Manager returns the pipeline manager.
func (e *Engine) Manager() *PipelineManager {
	return e.manager
}

// ShouldIntercept reports whether services of serviceType implemented by
// implType get a proxy. The implementation needs at least one exported
// method, and the service must be a func type or an interface with a
// registered proxy factory. Anything else is left alone.
func (e *Engine) ShouldIntercept(serviceType, implType reflect.Type) bool {
	if serviceType == nil {
		return false
	}
	if implType == nil {
		implType = serviceType
	}

	if !reflection.HasExportedMethods(implType) {
		e.logger.V(1).Info("interception skipped, no exported methods",
			"service", formatType(serviceType), "implementation", formatType(implType))
		return false
	}

	if serviceType.Kind() == reflect.Func {
		return true
	}

	if _, ok := e.registry.ProxyFactory(serviceType); ok {
		return true
	}

	e.logger.V(1).Info("interception skipped, no proxy registered", "service", formatType(serviceType))
	return false
}

// Proxy returns a proxy of target for serviceType, or target itself when the
// service is not intercepted.
func (e *Engine) Proxy(serviceType reflect.Type, target any) (any, error) {
	if target == nil {
		return nil, nil
	}

	targetValue := reflect.ValueOf(target)
	implType := targetValue.Type()
	if !e.ShouldIntercept(serviceType, implType) {
		return target, nil
	}

	var (
		proxy any
		err   error
	)
	if serviceType.Kind() == reflect.Func {
		proxy, err = e.wrapFunc(serviceType, targetValue)
		implType = serviceType
	} else {
		factory, _ := e.registry.ProxyFactory(serviceType)
		proxy, err = factory(target, func(table any) error {
			return e.Bind(table, serviceType, target)
		})
	}
	if err != nil {
		return nil, &RegistrationError{ServiceType: serviceType, Operation: "create proxy for", Cause: err}
	}

	if e.options.EagerPipelines {
		e.pendingMu.Lock()
		e.pending[pairKey{service: serviceType, impl: implType}] = struct{}{}
		e.pendingMu.Unlock()
	}

	e.logger.V(1).Info("proxy created", "service", formatType(serviceType), "implementation", formatType(implType))
	return proxy, nil
}

// InitializePending builds the pipelines of proxies created since the last
// call. Backends call it after resolution, outside their own locks, when
// eager pipelines are enabled.
func (e *Engine) InitializePending() error {
	e.pendingMu.Lock()
	pending := e.pending
	e.pending = make(map[pairKey]struct{})
	e.pendingMu.Unlock()

	for key := range pending {
		if err := e.manager.InitializePipelineFor(key.service, key.impl, e.container); err != nil {
			return err
		}
	}
	return nil
}

// Bind fills the method table with dispatchers forwarding to target.
// Each exported func field must name a method of serviceType and have its
// signature.
func (e *Engine) Bind(table any, serviceType reflect.Type, target any) error {
	tv := reflect.ValueOf(table)
	if !tv.IsValid() || tv.Kind() != reflect.Pointer || tv.IsNil() || tv.Elem().Kind() != reflect.Struct {
		return ErrTableNotPointer
	}
	if target == nil {
		return fmt.Errorf("%w: proxy target", ErrInterceptorNil)
	}

	targetValue := reflect.ValueOf(target)
	methods := e.manager.descriptors.get(serviceType, targetValue.Type(), e.registry)

	tableValue := tv.Elem()
	tableType := tableValue.Type()
	for i := 0; i < tableType.NumField(); i++ {
		field := tableType.Field(i)
		if !field.IsExported() || field.Type.Kind() != reflect.Func {
			continue
		}

		desc, ok := methods.byName[field.Name]
		if !ok {
			return &SignatureMismatchError{Method: field.Name, Cause: ErrMethodNotFound}
		}
		if !field.Type.ConvertibleTo(desc.Type) {
			return &SignatureMismatchError{Method: field.Name, Expected: desc.Type, Actual: field.Type}
		}

		method := targetValue.MethodByName(field.Name)
		if !method.IsValid() {
			return &SignatureMismatchError{Method: field.Name, Cause: ErrMethodNotFound}
		}

		tableValue.Field(i).Set(reflect.MakeFunc(field.Type, e.dispatcher(desc, target, method)))
	}

	return nil
}

// WrapFunc returns a func of the same type that runs fn through the
// interception pipeline of F.
func WrapFunc[F any](e *Engine, fn F) (F, error) {
	var zero F
	t := reflect.TypeOf((*F)(nil)).Elem()
	if t.Kind() != reflect.Func {
		return zero, fmt.Errorf("WrapFunc: %s is not a func type", formatType(t))
	}

	fv := reflect.ValueOf(fn)
	if fv.IsNil() {
		return zero, nil
	}

	wrapped, err := e.wrapFunc(t, fv)
	if err != nil {
		return zero, err
	}
	return wrapped.(F), nil
}

func (e *Engine) wrapFunc(serviceType reflect.Type, fn reflect.Value) (any, error) {
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, fmt.Errorf("%w: %s", ErrInterceptorNil, formatType(serviceType))
	}
	if fn.Type() != serviceType {
		if !fn.Type().ConvertibleTo(serviceType) {
			return nil, &SignatureMismatchError{Method: reflection.FuncName(serviceType), Expected: serviceType, Actual: fn.Type()}
		}
		fn = fn.Convert(serviceType)
	}

	methods := e.manager.descriptors.get(serviceType, serviceType, e.registry)
	desc := methods.methods[0]

	return reflect.MakeFunc(serviceType, e.dispatcher(desc, fn.Interface(), fn)).Interface(), nil
}
