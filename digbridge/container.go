// Package digbridge is a ServiceContainer backed by go.uber.org/dig.
//
// Services are registered with constructors, as with dig itself. Every
// registered service whose type has a proxy factory in the engine's registry
// (or is a func type) is decorated so that the container hands out the
// intercepted proxy instead of the raw instance:
//
//	registry := servicebridge.NewRegistry()
//	servicebridge.RegisterProxy(registry, NewCalculatorProxy)
//	servicebridge.For[Calculator](registry).All(servicebridge.UseNamed("timing"))
//
//	c := digbridge.New(servicebridge.WithRegistry(registry))
//	defer c.Close()
//
//	c.RegisterInstance(timing, servicebridge.Name("timing"), servicebridge.As(new(servicebridge.Interceptor)))
//	c.Register(NewCalculator, servicebridge.As(new(Calculator)))
//
//	calc, err := servicebridge.Resolve[Calculator](c)
//
// All services are singletons. Constructors run while the container lock is
// held, so a constructor must not make intercepted calls on its dependencies
// unless their pipelines were built beforehand with Verify. Likewise an
// interceptor must not call, while being constructed, a method of the service
// whose pipeline it belongs to.
package digbridge

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/dig"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/lifetime"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

var errType = reflection.ErrorType()

type serviceKey struct {
	t    reflect.Type
	name string
}

type registration struct {
	service     reflect.Type
	impl        reflect.Type
	name        string
	intercepted bool
}

// Container is a dig-backed ServiceContainer with interception.
type Container struct {
	id     string
	engine *servicebridge.Engine
	logger logr.Logger

	// mu serializes every call into dig.
	mu            sync.Mutex
	dig           *dig.Container
	registrations map[serviceKey]registration
	order         []serviceKey

	tracker  *lifetime.Tracker
	disposed atomic.Bool
}

var _ servicebridge.ServiceContainer = (*Container)(nil)

// New creates an empty container. The options configure its interception
// engine.
func New(opts ...servicebridge.Option) *Container {
	c := &Container{
		id:            uuid.NewString(),
		dig:           dig.New(),
		registrations: make(map[serviceKey]registration),
	}
	c.engine = servicebridge.NewEngine(c, opts...)
	c.logger = c.engine.Options().Logger.WithName("digbridge")
	c.tracker = lifetime.NewTracker(lifetime.DefaultTimeout, c.logDisposal)
	return c
}

// ID returns the unique identifier of the container.
func (c *Container) ID() string {
	return c.id
}

// Engine returns the interception engine of the container.
func (c *Container) Engine() *servicebridge.Engine {
	return c.engine
}

// IsDisposed reports whether Close has been called.
func (c *Container) IsDisposed() bool {
	return c.disposed.Load()
}

// Register provides a constructor. The constructor returns the service,
// optionally followed by an error, and receives its dependencies as
// parameters. Name and As change the key the service is provided under.
func (c *Container) Register(constructor any, opts ...servicebridge.RegisterOption) error {
	if c.IsDisposed() {
		return servicebridge.ErrContainerDisposed
	}

	info, err := reflection.AnalyzeConstructor(constructor)
	if err != nil {
		return &servicebridge.RegistrationError{
			ServiceType: reflect.TypeOf(constructor),
			Operation:   "register",
			Cause:       fmt.Errorf("%w: %v", servicebridge.ErrConstructorInvalid, err),
		}
	}
	implType := info.ServiceType

	options, err := servicebridge.ApplyRegisterOptions(opts...)
	if err == nil {
		err = options.Implements(implType)
	}
	if err != nil {
		return &servicebridge.RegistrationError{ServiceType: implType, Operation: "register", Cause: err}
	}

	provided := options.As
	if len(provided) == 0 {
		provided = []reflect.Type{implType}
	}

	var provideOpts []dig.ProvideOption
	if options.Name != "" {
		provideOpts = append(provideOpts, dig.Name(options.Name))
	}
	if len(options.As) > 0 {
		provideOpts = append(provideOpts, dig.As(lo.Map(options.As, func(t reflect.Type, _ int) any {
			return reflect.New(t).Interface()
		})...))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range provided {
		if _, ok := c.registrations[serviceKey{t: t, name: options.Name}]; ok {
			return &servicebridge.RegistrationError{ServiceType: t, Operation: "register", Cause: servicebridge.ErrAlreadyRegistered}
		}
	}

	if err := c.dig.Provide(c.track(info), provideOpts...); err != nil {
		return &servicebridge.RegistrationError{ServiceType: implType, Operation: "register", Cause: err}
	}

	for _, t := range provided {
		reg := registration{
			service:     t,
			impl:        implType,
			name:        options.Name,
			intercepted: c.engine.ShouldIntercept(t, implType),
		}
		if reg.intercepted {
			if err := c.dig.Decorate(c.decorator(t, options.Name)); err != nil {
				return &servicebridge.RegistrationError{ServiceType: t, Operation: "decorate", Cause: err}
			}
		}

		key := serviceKey{t: t, name: options.Name}
		c.registrations[key] = reg
		c.order = append(c.order, key)

		c.logger.V(1).Info("service registered",
			"service", t.String(), "name", options.Name, "intercepted", reg.intercepted)
	}

	return nil
}

// RegisterInstance provides a ready value. The value is never constructed by
// the container, but it is still proxied and closed like any other service.
func (c *Container) RegisterInstance(value any, opts ...servicebridge.RegisterOption) error {
	if value == nil {
		return &servicebridge.RegistrationError{Operation: "register instance", Cause: servicebridge.ErrConstructorInvalid}
	}

	v := reflect.ValueOf(value)
	fnType := reflect.FuncOf(nil, []reflect.Type{v.Type()}, false)
	constructor := reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		return []reflect.Value{v}
	})
	return c.Register(constructor.Interface(), opts...)
}

// GetInstance resolves the service of serviceType registered under name.
func (c *Container) GetInstance(serviceType reflect.Type, name string) (any, error) {
	if c.IsDisposed() {
		return nil, servicebridge.ErrContainerDisposed
	}
	if serviceType == nil {
		return nil, servicebridge.ErrServiceTypeNil
	}
	if !c.IsRegistered(serviceType, name) {
		return nil, &servicebridge.ResolutionError{ServiceType: serviceType, Name: name, Cause: servicebridge.ErrServiceNotFound}
	}

	var result any
	fn := extractor(serviceType, name, &result)

	c.mu.Lock()
	err := c.dig.Invoke(fn)
	c.mu.Unlock()
	if err != nil {
		return nil, &servicebridge.ResolutionError{ServiceType: serviceType, Name: name, Cause: dig.RootCause(err)}
	}

	if c.engine.Options().EagerPipelines {
		if err := c.engine.InitializePending(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// IsRegistered reports whether a service is registered under serviceType and name.
func (c *Container) IsRegistered(serviceType reflect.Type, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.registrations[serviceKey{t: serviceType, name: name}]
	return ok
}

// Verify builds the pipelines of every intercepted registration, reporting
// all interceptor configuration errors at once.
func (c *Container) Verify() error {
	if c.IsDisposed() {
		return servicebridge.ErrContainerDisposed
	}

	c.mu.Lock()
	regs := make([]registration, 0, len(c.order))
	for _, key := range c.order {
		if reg := c.registrations[key]; reg.intercepted {
			regs = append(regs, reg)
		}
	}
	c.mu.Unlock()

	var errs []error
	for _, reg := range regs {
		if err := c.engine.Manager().InitializePipelineFor(reg.service, reg.impl, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close disposes every constructed service implementing Disposable or
// DisposableWithContext, in reverse construction order. Closing twice is a
// no-op.
func (c *Container) Close() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}

	err := c.tracker.Dispose()
	c.logger.V(1).Info("container closed", "disposed", c.tracker.Statistics().Disposed)
	return err
}

func (c *Container) logDisposal(instance any, err error) {
	if err != nil {
		c.logger.Error(err, "closing service failed", "type", fmt.Sprintf("%T", instance))
	}
}

// track wraps a constructor so that the instances it creates are closed
// with the container.
func (c *Container) track(info *reflection.ConstructorInfo) any {
	return reflect.MakeFunc(info.Type, func(args []reflect.Value) []reflect.Value {
		results := info.Value.Call(args)
		if info.HasErrorReturn && !results[1].IsNil() {
			return results
		}
		if results[0].IsValid() && results[0].CanInterface() {
			c.tracker.Track(results[0].Interface())
		}
		return results
	}).Interface()
}

// decorator builds the dig decorator that replaces a service of type t
// registered under name with its proxy.
func (c *Container) decorator(t reflect.Type, name string) any {
	if name == "" {
		fnType := reflect.FuncOf([]reflect.Type{t}, []reflect.Type{t, errType}, false)
		return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
			proxy, err := c.proxy(t, args[0])
			return []reflect.Value{proxy, errorValue(err)}
		}).Interface()
	}

	inType := namedStruct(reflect.TypeOf(dig.In{}), t, name)
	outType := namedStruct(reflect.TypeOf(dig.Out{}), t, name)
	fnType := reflect.FuncOf([]reflect.Type{inType}, []reflect.Type{outType, errType}, false)
	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		out := reflect.New(outType).Elem()
		proxy, err := c.proxy(t, args[0].Field(1))
		out.Field(1).Set(proxy)
		return []reflect.Value{out, errorValue(err)}
	}).Interface()
}

func (c *Container) proxy(t reflect.Type, target reflect.Value) (reflect.Value, error) {
	result := reflect.New(t).Elem()
	if !target.IsValid() || isNil(target) {
		return result, nil
	}

	proxy, err := c.engine.Proxy(t, target.Interface())
	if err != nil {
		return result, err
	}
	if proxy != nil {
		result.Set(reflect.ValueOf(proxy))
	}
	return result, nil
}

// extractor builds a function dig can invoke that stores the requested
// service into result.
func extractor(t reflect.Type, name string, result *any) any {
	var paramType reflect.Type
	if name == "" {
		paramType = t
	} else {
		paramType = namedStruct(reflect.TypeOf(dig.In{}), t, name)
	}

	fnType := reflect.FuncOf([]reflect.Type{paramType}, nil, false)
	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		v := args[0]
		if name != "" {
			v = v.Field(1)
		}
		*result = v.Interface()
		return nil
	}).Interface()
}

// namedStruct returns struct{ marker; Service t `name:"name"` } where marker
// is dig.In or dig.Out.
func namedStruct(marker, t reflect.Type, name string) reflect.Type {
	return reflect.StructOf([]reflect.StructField{
		{
			Name:      marker.Name(),
			Type:      marker,
			Anonymous: true,
		},
		{
			Name: "Service",
			Type: t,
			Tag:  reflect.StructTag(fmt.Sprintf(`name:"%s"`, name)),
		},
	})
}

func errorValue(err error) reflect.Value {
	return reflect.ValueOf(&err).Elem()
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}
