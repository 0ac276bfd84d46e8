// Package servicebridge adds method interception to dependency injection
// containers. Services resolved through a bridged container come back wrapped
// in a proxy; every call on the proxy runs through a pipeline of interceptors
// before reaching the real implementation.
//
// # Overview
//
// The package is container agnostic. A backend implements ServiceContainer and
// asks an Engine to proxy the instances it creates. Two backends ship with the
// module:
//   - digbridge on go.uber.org/dig
//   - dobridge on github.com/samber/do
//
// The Engine owns a Registry of interception declarations and a
// PipelineManager that builds and caches one Pipeline per intercepted method.
//
// # Proxies
//
// Go cannot synthesize a type implementing an interface at runtime, so each
// intercepted interface has a small hand-written proxy: a struct holding the
// target plus a table of func fields, one per method. The Engine fills the
// table with dispatchers that build a MethodInvocation and run the pipeline:
//
//	type CalculatorTable struct {
//	    Add func(a, b int) (int, error)
//	}
//
//	type CalculatorProxy struct {
//	    Target Calculator
//	    Table  CalculatorTable
//	}
//
//	func (p *CalculatorProxy) Add(a, b int) (int, error) { return p.Table.Add(a, b) }
//
//	func NewCalculatorProxy(target Calculator, bind servicebridge.BindFunc) (Calculator, error) {
//	    p := &CalculatorProxy{Target: target}
//	    if err := bind(&p.Table); err != nil {
//	        return nil, err
//	    }
//	    return p, nil
//	}
//
// Register the factory with RegisterProxy. Func types need no proxy; WrapFunc
// returns an intercepted func of the same type.
//
// # Declaring Interceptors
//
// Interceptors are declared per type, for all methods or for a single one:
//
//	registry := servicebridge.NewRegistry()
//	servicebridge.RegisterProxy(registry, NewCalculatorProxy)
//
//	servicebridge.For[Calculator](registry).
//	    All(servicebridge.UseNamed("logging")).
//	    Method("Add", servicebridge.UseTypeOf[*Audit](servicebridge.PerCall())).
//	    Parameters("Add", "a", "b")
//
// Declarations on the service interface run before those on the
// implementation type; type-wide declarations run before method ones. Named
// and typed declarations resolve the interceptor from the container, so
// interceptors can have dependencies of their own. Fields tagged `inject:""`
// on an interceptor are filled with InjectFields.
//
// The same declarations can be loaded from a YAML, TOML or JSON file with
// Registry.LoadFile, or grouped into modules with NewModule.
//
// # Lifetimes
//
// A pipeline is built once per (service, implementation) pair, all methods
// together, the first time a proxy of that pair is called. With
// WithEagerPipelines it is built when the service is resolved. Interceptors
// with PipelineLifetime are created at build time and shared by every call;
// CallLifetime interceptors are created again for each call.
//
// # Errors and Panics
//
// A target returning an error, or panicking, produces a failed MethodReturn
// that interceptors can inspect or replace. A panic is carried as a
// *PanicError and re-raised with its original value if it reaches the caller
// unchanged.
//
// Resolution failures are reported as *ResolutionError; pipeline build
// failures as *ConfigurationError. Errors wrap sentinels such as
// ErrServiceNotFound and ErrContainerDisposed for errors.Is.
//
// # Thread Safety
//
// Engines, registries, pipeline managers and both backends are safe for
// concurrent use. Registration is expected to finish before the first
// resolution.
package servicebridge
