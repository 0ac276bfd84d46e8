package testutil

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// Backend is the surface shared by the container adapters.
type Backend interface {
	servicebridge.ServiceContainer
	Register(constructor any, opts ...servicebridge.RegisterOption) error
	RegisterInstance(value any, opts ...servicebridge.RegisterOption) error
	Verify() error
	Engine() *servicebridge.Engine
}

// BackendFactory creates an empty backend with the given engine options.
type BackendFactory func(opts ...servicebridge.Option) Backend

// DisposeLog records Close calls in order.
type DisposeLog struct {
	mu     sync.Mutex
	closed []string
}

func (l *DisposeLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, name)
}

// Closed returns the names of the closed resources in order.
func (l *DisposeLog) Closed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.closed...)
}

// Resource implements servicebridge.Disposable.
type Resource struct {
	Name string
	Log  *DisposeLog
	Err  error
}

func (r *Resource) Close() error {
	r.Log.add(r.Name)
	return r.Err
}

// ContextResource implements servicebridge.DisposableWithContext.
type ContextResource struct {
	Resource
}

func (r *ContextResource) Close(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("close context has no deadline")
	}
	return r.Resource.Close()
}

// Consumer depends on a Calculator.
type Consumer struct {
	Calc Calculator
}

// NewConsumer is a constructor with a Calculator dependency.
func NewConsumer(calc Calculator) *Consumer {
	return &Consumer{Calc: calc}
}

func calculatorRegistry(t *testing.T) *servicebridge.Registry {
	t.Helper()
	registry := servicebridge.NewRegistry()
	require.NoError(t, servicebridge.RegisterProxy(registry, NewCalculatorProxy))
	return registry
}

func registerRecorder(t *testing.T, c Backend, name string, rec *Recorder) {
	t.Helper()
	require.NoError(t, c.RegisterInstance(NewRecordingInterceptor(name, rec),
		servicebridge.Name(name), servicebridge.As(new(servicebridge.Interceptor))))
}

// RunBackendTests checks the behavior every container adapter shares.
func RunBackendTests(t *testing.T, newBackend BackendFactory) {
	t.Run("intercepts registered services", func(t *testing.T) {
		registry := calculatorRegistry(t)
		servicebridge.For[Calculator](registry).
			All(servicebridge.UseNamed("outer")).
			Method("Add", servicebridge.UseNamed("inner"))

		c := newBackend(servicebridge.WithRegistry(registry))
		defer c.Close()

		rec := NewRecorder()
		registerRecorder(t, c, "outer", rec)
		registerRecorder(t, c, "inner", rec)
		require.NoError(t, c.Register(NewCalculator, servicebridge.As(new(Calculator))))

		calc := RequireResolve[Calculator](t, c)
		assert.IsType(t, &CalculatorProxy{}, calc)

		sum, err := calc.Add(1, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, sum)
		AssertEvents(t, rec, "outer:before", "inner:before", "inner:after", "outer:after")

		again := RequireResolve[Calculator](t, c)
		assert.Same(t, calc, again, "services are singletons")
	})

	t.Run("dependencies receive proxies", func(t *testing.T) {
		registry := calculatorRegistry(t)
		counter := &CountingInterceptor{}
		servicebridge.For[Calculator](registry).All(servicebridge.Use(counter))

		c := newBackend(servicebridge.WithRegistry(registry))
		defer c.Close()

		require.NoError(t, c.Register(NewCalculator, servicebridge.As(new(Calculator))))
		require.NoError(t, c.Register(NewConsumer))

		consumer := RequireResolve[*Consumer](t, c)
		_, err := consumer.Calc.Divide(6, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counter.Calls())
	})

	t.Run("named services", func(t *testing.T) {
		registry := calculatorRegistry(t)
		counter := &CountingInterceptor{}
		servicebridge.For[Calculator](registry).All(servicebridge.Use(counter))

		c := newBackend(servicebridge.WithRegistry(registry))
		defer c.Close()

		primary := NewCalculator()
		require.NoError(t, c.RegisterInstance(primary, servicebridge.Name("primary"), servicebridge.As(new(Calculator))))
		require.NoError(t, c.Register(NewCalculator, servicebridge.Name("secondary"), servicebridge.As(new(Calculator))))

		assert.True(t, c.IsRegistered(CalculatorType, "primary"))
		assert.False(t, c.IsRegistered(CalculatorType, ""))

		calc, err := servicebridge.ResolveNamed[Calculator](c, "primary")
		require.NoError(t, err)
		_, err = calc.Add(1, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), primary.Calls())
		assert.Equal(t, int64(1), counter.Calls())

		_, err = servicebridge.Resolve[Calculator](c)
		AssertNotFound(t, err)
	})

	t.Run("services without a proxy are not intercepted", func(t *testing.T) {
		c := newBackend()
		defer c.Close()

		require.NoError(t, c.Register(func() Greeter { return GreeterImpl{} }))
		require.NoError(t, c.RegisterInstance(&Plain{Value: 7}))

		greeter := RequireResolve[Greeter](t, c)
		assert.IsType(t, GreeterImpl{}, greeter)

		plain := RequireResolve[*Plain](t, c)
		assert.Equal(t, 7, plain.Value)
	})

	t.Run("func services are wrapped", func(t *testing.T) {
		registry := servicebridge.NewRegistry()
		servicebridge.For[Formatter](registry).All(servicebridge.UseNamed("rec"))

		c := newBackend(servicebridge.WithRegistry(registry))
		defer c.Close()

		rec := NewRecorder()
		registerRecorder(t, c, "rec", rec)
		require.NoError(t, c.Register(NewFormatter))

		format := RequireResolve[Formatter](t, c)
		out, err := format("bob")
		require.NoError(t, err)
		assert.Equal(t, "<bob>", out)

		_, err = format("")
		assert.ErrorIs(t, err, ErrIntentional)
		AssertEvents(t, rec, "rec:before", "rec:after", "rec:before", "rec:after")
	})

	t.Run("Verify reports configuration errors", func(t *testing.T) {
		registry := calculatorRegistry(t)
		servicebridge.For[Calculator](registry).Method("Add", servicebridge.UseNamed("missing"))

		c := newBackend(servicebridge.WithRegistry(registry))
		defer c.Close()

		require.NoError(t, c.Register(NewCalculator, servicebridge.As(new(Calculator))))

		err := c.Verify()
		var cfgErr *servicebridge.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "Add", cfgErr.Method)

		registerRecorder(t, c, "missing", NewRecorder())
		assert.NoError(t, c.Verify(), "failed builds are retried")
	})

	t.Run("eager pipelines fail resolution", func(t *testing.T) {
		registry := calculatorRegistry(t)
		servicebridge.For[Calculator](registry).All(servicebridge.UseNamed("missing"))

		c := newBackend(servicebridge.WithRegistry(registry), servicebridge.WithEagerPipelines())
		defer c.Close()

		require.NoError(t, c.Register(NewCalculator, servicebridge.As(new(Calculator))))

		_, err := servicebridge.Resolve[Calculator](c)
		var cfgErr *servicebridge.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("registration errors", func(t *testing.T) {
		c := newBackend()
		defer c.Close()

		var regErr *servicebridge.RegistrationError
		assert.ErrorAs(t, c.Register(42), &regErr)
		assert.ErrorIs(t, c.Register(func() {}), servicebridge.ErrConstructorInvalid)
		assert.Error(t, c.RegisterInstance(nil))
		assert.Error(t, c.Register(NewCalculator, servicebridge.As(new(Greeter))))
		assert.Error(t, c.Register(NewCalculator, servicebridge.Name(`a"b`)))

		require.NoError(t, c.Register(NewCalculator, servicebridge.As(new(Calculator))))
		err := c.Register(NewCalculator, servicebridge.As(new(Calculator)))
		assert.ErrorIs(t, err, servicebridge.ErrAlreadyRegistered)

		_, err = c.GetInstance(nil, "")
		assert.ErrorIs(t, err, servicebridge.ErrServiceTypeNil)
		_, err = c.GetInstance(reflect.TypeOf(0), "")
		AssertNotFound(t, err)
	})

	t.Run("constructor errors", func(t *testing.T) {
		c := newBackend()
		defer c.Close()

		require.NoError(t, c.Register(func() (*Plain, error) { return nil, ErrTest }))
		_, err := servicebridge.Resolve[*Plain](c)
		assert.ErrorIs(t, err, ErrTest)
	})

	t.Run("Close", func(t *testing.T) {
		c := newBackend()
		log := &DisposeLog{}

		require.NoError(t, c.Register(func() *Resource { return &Resource{Name: "first", Log: log} }))
		require.NoError(t, c.Register(func(*Resource) *ContextResource {
			return &ContextResource{Resource{Name: "second", Log: log, Err: ErrTest}}
		}))
		require.NoError(t, c.Register(func() *Consumer { return &Consumer{} }))
		require.NoError(t, c.Register(func() *Plain { return &Plain{} }))

		RequireResolve[*ContextResource](t, c)
		assert.Empty(t, log.Closed())

		err := c.Close()
		assert.ErrorIs(t, err, ErrTest)
		assert.Equal(t, []string{"second", "first"}, log.Closed(), "reverse construction order")
		assert.True(t, c.IsDisposed())

		assert.NoError(t, c.Close(), "second Close is a no-op")
		assert.Equal(t, []string{"second", "first"}, log.Closed())

		_, err = c.GetInstance(reflect.TypeOf(&Plain{}), "")
		AssertDisposed(t, err)
		AssertDisposed(t, c.Register(NewCalculator))
		AssertDisposed(t, c.Verify())
	})

	t.Run("proxies fail after Close", func(t *testing.T) {
		registry := calculatorRegistry(t)
		servicebridge.For[Calculator](registry).All(servicebridge.Use(&CountingInterceptor{}))

		c := newBackend(servicebridge.WithRegistry(registry))
		require.NoError(t, c.Register(NewCalculator, servicebridge.As(new(Calculator))))

		calc := RequireResolve[Calculator](t, c)
		_, err := calc.Divide(4, 2)
		require.NoError(t, err)
		require.NoError(t, c.Close())

		_, err = calc.Add(1, 1)
		AssertDisposed(t, err)
		_, err = calc.Divide(4, 2)
		AssertDisposed(t, err)
	})

	t.Run("concurrent resolution", func(t *testing.T) {
		registry := calculatorRegistry(t)
		counter := &CountingInterceptor{}
		servicebridge.For[Calculator](registry).All(servicebridge.Use(counter))

		c := newBackend(servicebridge.WithRegistry(registry))
		defer c.Close()
		require.NoError(t, c.Register(NewCalculator, servicebridge.As(new(Calculator))))

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				calc, err := servicebridge.Resolve[Calculator](c)
				if assert.NoError(t, err) {
					_, err = calc.Add(1, 1)
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(20), counter.Calls())
		assert.Equal(t, 6, c.Engine().Manager().Len())
	})
}
