// Package dobridge is a ServiceContainer backed by github.com/samber/do.
//
// Services are provided to the injector under the string form of their type,
// with "#name" appended for named registrations, so two types printing the
// same name (same package name, same type name) cannot both be registered.
// Constructor parameters are resolved by type the same way. Each
// registration keeps the raw instance under a private name and provides the
// intercepted proxy under the service name:
//
//	c := dobridge.New(servicebridge.WithRegistry(registry))
//	defer c.Close()
//
//	c.Register(NewCalculator, servicebridge.As(new(Calculator)))
//	calc, err := servicebridge.Resolve[Calculator](c)
//
// All services are lazily built singletons.
package dobridge

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/lifetime"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

type registration struct {
	service     reflect.Type
	impl        reflect.Type
	intercepted bool
}

// Container is a samber/do backed ServiceContainer with interception.
type Container struct {
	id       string
	engine   *servicebridge.Engine
	logger   logr.Logger
	injector *do.Injector

	mu            sync.Mutex
	registrations map[string]registration
	order         []string
	seq           int

	tracker  *lifetime.Tracker
	disposed atomic.Bool
}

var _ servicebridge.ServiceContainer = (*Container)(nil)

// New creates an empty container. The options configure its interception
// engine; the injector's own log lines go to the engine logger at V(2).
func New(opts ...servicebridge.Option) *Container {
	c := &Container{
		id:            uuid.NewString(),
		registrations: make(map[string]registration),
	}
	c.engine = servicebridge.NewEngine(c, opts...)
	c.logger = c.engine.Options().Logger.WithName("dobridge")
	c.tracker = lifetime.NewTracker(lifetime.DefaultTimeout, func(instance any, err error) {
		if err != nil {
			c.logger.Error(err, "closing service failed", "type", fmt.Sprintf("%T", instance))
		}
	})
	c.injector = do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			c.logger.V(2).Info(fmt.Sprintf(format, args...))
		},
	})
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

// Injector returns the underlying injector.
func (c *Container) Injector() *do.Injector {
	return c.injector
}

// IsDisposed reports whether Close has been called.
func (c *Container) IsDisposed() bool {
	return c.disposed.Load()
}

// ServiceName returns the injector name of a service.
func ServiceName(t reflect.Type, name string) string {
	if name == "" {
		return t.String()
	}
	return t.String() + "#" + name
}

// Register provides a constructor. Its parameters are resolved from the
// container by type; named dependencies need a named registration resolved
// through GetInstance instead.
func (c *Container) Register(constructor any, opts ...servicebridge.RegisterOption) error {
	if c.IsDisposed() {
		return servicebridge.ErrContainerDisposed
	}

	info, err := reflection.AnalyzeConstructor(constructor)
	if err == nil && info.Type.IsVariadic() {
		err = errors.New("variadic constructors are not supported")
	}
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
	names := lo.Map(provided, func(t reflect.Type, _ int) string {
		return ServiceName(t, options.Name)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.injector.ListProvidedServices()
	for i, name := range names {
		if lo.Contains(existing, name) {
			return &servicebridge.RegistrationError{ServiceType: provided[i], Operation: "register", Cause: servicebridge.ErrAlreadyRegistered}
		}
	}

	c.seq++
	rawName := fmt.Sprintf("%s@%d", implType.String(), c.seq)
	do.ProvideNamed(c.injector, rawName, c.construct(info))

	for i, t := range provided {
		reg := registration{
			service:     t,
			impl:        implType,
			intercepted: c.engine.ShouldIntercept(t, implType),
		}
		do.ProvideNamed(c.injector, names[i], c.proxy(t, rawName))

		c.registrations[names[i]] = reg
		c.order = append(c.order, names[i])

		c.logger.V(1).Info("service registered", "service", names[i], "intercepted", reg.intercepted)
	}

	return nil
}

// RegisterInstance provides a ready value.
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

	instance, err := c.resolve(c.injector, serviceType, name)
	if err != nil {
		return nil, err
	}

	if c.engine.Options().EagerPipelines {
		if err := c.engine.InitializePending(); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// IsRegistered reports whether a service is registered under serviceType and name.
func (c *Container) IsRegistered(serviceType reflect.Type, name string) bool {
	if serviceType == nil {
		return false
	}
	return lo.Contains(c.injector.ListProvidedServices(), ServiceName(serviceType, name))
}

// Verify builds the pipelines of every intercepted registration.
func (c *Container) Verify() error {
	if c.IsDisposed() {
		return servicebridge.ErrContainerDisposed
	}

	c.mu.Lock()
	regs := lo.FilterMap(c.order, func(name string, _ int) (registration, bool) {
		reg := c.registrations[name]
		return reg, reg.intercepted
	})
	c.mu.Unlock()

	var errs []error
	for _, reg := range regs {
		if err := c.engine.Manager().InitializePipelineFor(reg.service, reg.impl, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close shuts the injector down and then closes every constructed
// Disposable, newest first. Closing twice is a no-op.
func (c *Container) Close() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if err := c.injector.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	if err := c.tracker.Dispose(); err != nil {
		errs = append(errs, err)
	}

	c.logger.V(1).Info("container closed", "disposed", c.tracker.Statistics().Disposed)
	return errors.Join(errs...)
}

func (c *Container) resolve(injector *do.Injector, t reflect.Type, name string) (any, error) {
	service := ServiceName(t, name)
	if !lo.Contains(injector.ListProvidedServices(), service) {
		return nil, &servicebridge.ResolutionError{ServiceType: t, Name: name, Cause: servicebridge.ErrServiceNotFound}
	}

	instance, err := do.InvokeNamed[any](injector, service)
	if err != nil {
		var resErr *servicebridge.ResolutionError
		if errors.As(err, &resErr) {
			return nil, err
		}
		return nil, &servicebridge.ResolutionError{ServiceType: t, Name: name, Cause: err}
	}
	return instance, nil
}

// construct is the provider of the raw instance.
func (c *Container) construct(info *reflection.ConstructorInfo) do.Provider[any] {
	return func(injector *do.Injector) (any, error) {
		instance, err := info.Invoke(func(t reflect.Type) (any, error) {
			return c.resolve(injector, t, "")
		})
		if err != nil {
			return nil, err
		}

		c.tracker.Track(instance)
		return instance, nil
	}
}

// proxy is the provider of a service: the raw instance behind its proxy.
func (c *Container) proxy(t reflect.Type, rawName string) do.Provider[any] {
	return func(injector *do.Injector) (any, error) {
		raw, err := do.InvokeNamed[any](injector, rawName)
		if err != nil {
			return nil, err
		}
		return c.engine.Proxy(t, raw)
	}
}
