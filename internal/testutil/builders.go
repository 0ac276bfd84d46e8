package testutil

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

type serviceKey struct {
	t    reflect.Type
	name string
}

// MapContainer is an in-memory ServiceContainer holding ready instances.
type MapContainer struct {
	id          string
	mu          sync.RWMutex
	services    map[serviceKey]any
	disposed    atomic.Bool
	resolutions atomic.Int64
}

var _ servicebridge.ServiceContainer = (*MapContainer)(nil)

// NewMapContainer creates an empty MapContainer.
func NewMapContainer() *MapContainer {
	return &MapContainer{
		id:       uuid.NewString(),
		services: make(map[serviceKey]any),
	}
}

// Add registers instance under t and name.
func (c *MapContainer) Add(t reflect.Type, name string, instance any) *MapContainer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[serviceKey{t: t, name: name}] = instance
	return c
}

// AddInstance registers instance under T and name.
func AddInstance[T any](c *MapContainer, name string, instance T) *MapContainer {
	return c.Add(reflect.TypeOf((*T)(nil)).Elem(), name, instance)
}

// AddInterceptor registers a named interceptor, as UseNamed expects.
func (c *MapContainer) AddInterceptor(name string, interceptor servicebridge.Interceptor) *MapContainer {
	return c.Add(servicebridge.InterceptorType, name, interceptor)
}

func (c *MapContainer) ID() string {
	return c.id
}

func (c *MapContainer) GetInstance(serviceType reflect.Type, name string) (any, error) {
	if c.disposed.Load() {
		return nil, servicebridge.ErrContainerDisposed
	}
	c.resolutions.Add(1)

	c.mu.RLock()
	defer c.mu.RUnlock()

	instance, ok := c.services[serviceKey{t: serviceType, name: name}]
	if !ok {
		return nil, &servicebridge.ResolutionError{
			ServiceType: serviceType,
			Name:        name,
			Cause:       servicebridge.ErrServiceNotFound,
		}
	}
	return instance, nil
}

func (c *MapContainer) IsRegistered(serviceType reflect.Type, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.services[serviceKey{t: serviceType, name: name}]
	return ok
}

func (c *MapContainer) IsDisposed() bool {
	return c.disposed.Load()
}

func (c *MapContainer) Close() error {
	c.disposed.Store(true)
	return nil
}

// Resolutions returns the number of GetInstance calls.
func (c *MapContainer) Resolutions() int64 {
	return c.resolutions.Load()
}

// CalculatorType is the reflected Calculator interface.
var CalculatorType = reflect.TypeOf((*Calculator)(nil)).Elem()

// NewCalculatorEngine returns an engine over c whose registry knows the
// Calculator proxy, plus that registry for declarations.
func NewCalculatorEngine(c servicebridge.ServiceContainer, opts ...servicebridge.Option) (*servicebridge.Engine, *servicebridge.Registry) {
	registry := servicebridge.NewRegistry()
	if err := servicebridge.RegisterProxy(registry, NewCalculatorProxy); err != nil {
		panic(err)
	}
	opts = append([]servicebridge.Option{servicebridge.WithRegistry(registry)}, opts...)
	return servicebridge.NewEngine(c, opts...), registry
}

// ProxyCalculator creates a proxied Calculator around impl.
func ProxyCalculator(engine *servicebridge.Engine, impl Calculator) (Calculator, error) {
	proxy, err := engine.Proxy(CalculatorType, impl)
	if err != nil {
		return nil, err
	}
	return proxy.(Calculator), nil
}
