package servicebridge

import (
	"reflect"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// PipelineManager builds and caches the pipelines of intercepted methods.
// Pipelines are built at most once per type pair and never evicted.
type PipelineManager struct {
	id string

	pipelines sync.Map // map[MethodIdentity]*Pipeline
	built     sync.Map // map[pairKey]struct{}
	group     singleflight.Group

	descriptors *descriptorCache
	registry    *Registry
	factory     InterceptorFactory
	logger      logr.Logger
}

// NewPipelineManager creates a manager using the registry, factory and
// logger from opts.
func NewPipelineManager(opts ...Option) *PipelineManager {
	return newPipelineManager(NewOptions(opts...))
}

func newPipelineManager(options *Options) *PipelineManager {
	return &PipelineManager{
		id:          uuid.NewString(),
		descriptors: newDescriptorCache(),
		registry:    options.Registry,
		factory:     options.Factory,
		logger:      options.Logger.WithName("pipelines"),
	}
}

// ID returns the unique identifier of this manager.
func (m *PipelineManager) ID() string {
	return m.id
}

// GetPipeline returns the cached pipeline of a method, or EmptyPipeline()
// when it has not been built. It never builds.
func (m *PipelineManager) GetPipeline(id MethodIdentity) *Pipeline {
	if p, ok := m.pipelines.Load(id); ok {
		return p.(*Pipeline)
	}
	return emptyPipeline
}

// Descriptor returns the descriptor of a method of a built or bound type pair.
func (m *PipelineManager) Descriptor(id MethodIdentity) (*MethodDescriptor, bool) {
	return m.descriptors.method(id, m.registry)
}

// InitializePipeline builds the pipelines of every exported method of
// targetType, keyed with targetType as both service and implementation.
func (m *PipelineManager) InitializePipeline(targetType reflect.Type, c ServiceContainer) error {
	return m.InitializePipelineFor(targetType, targetType, c)
}

// InitializePipelineFor builds the pipelines of every method of serviceType
// for calls forwarded to implType. Concurrent callers for the same pair wait
// for a single build. A pair that is already built is left untouched; a
// failed build stores nothing, so the next call tries again.
func (m *PipelineManager) InitializePipelineFor(serviceType, implType reflect.Type, c ServiceContainer) error {
	if c == nil {
		return ErrContainerNil
	}
	if c.IsDisposed() {
		return ErrContainerDisposed
	}
	if serviceType == nil {
		return ErrServiceTypeNil
	}
	if implType == nil {
		implType = serviceType
	}

	key := pairKey{service: serviceType, impl: implType}
	if _, ok := m.built.Load(key); ok {
		return nil
	}

	_, err, _ := m.group.Do(key.String(), func() (any, error) {
		if _, ok := m.built.Load(key); ok {
			return nil, nil
		}
		return nil, m.build(key, c)
	})
	return err
}

func (m *PipelineManager) build(key pairKey, c ServiceContainer) error {
	methods := m.descriptors.get(key.service, key.impl, m.registry).methods

	built := make(map[MethodIdentity]*Pipeline, len(methods))
	for _, desc := range methods {
		p, err := m.buildMethod(desc, c)
		if err != nil {
			m.logger.Error(err, "pipeline build failed",
				"service", formatType(key.service), "implementation", formatType(key.impl), "method", desc.Name)
			return err
		}
		built[desc.Identity()] = p
	}

	for id, p := range built {
		m.pipelines.LoadOrStore(id, p)
		m.logger.V(1).Info("pipeline built",
			"service", formatType(id.Service), "method", id.Name, "interceptors", p.String())
	}
	m.built.Store(key, struct{}{})

	return nil
}

func (m *PipelineManager) buildMethod(desc *MethodDescriptor, c ServiceContainer) (*Pipeline, error) {
	decls := m.registry.Declarations(desc.Service, desc.Implementation, desc.Name)

	interceptors := make([]Interceptor, 0, len(decls))
	for _, decl := range decls {
		interceptor, err := m.factory.Create(decl, c)
		if err != nil {
			return nil, &ConfigurationError{
				Service:     desc.Service,
				Method:      desc.Name,
				Declaration: decl.String(),
				Cause:       err,
			}
		}

		if lifetimeOf(decl) == CallLifetime {
			interceptor = &perCallInterceptor{decl: decl, factory: m.factory, method: desc}
		}
		interceptors = append(interceptors, interceptor)
	}

	return NewPipeline(interceptors...), nil
}

// IsBuilt reports whether the pipelines of a type pair have been built.
func (m *PipelineManager) IsBuilt(serviceType, implType reflect.Type) bool {
	_, ok := m.built.Load(pairKey{service: serviceType, impl: implType})
	return ok
}

// Pipelines returns a snapshot of every built pipeline.
func (m *PipelineManager) Pipelines() map[MethodIdentity]*Pipeline {
	snapshot := make(map[MethodIdentity]*Pipeline)
	m.pipelines.Range(func(key, value any) bool {
		snapshot[key.(MethodIdentity)] = value.(*Pipeline)
		return true
	})
	return snapshot
}

// Len returns the number of built pipelines.
func (m *PipelineManager) Len() int {
	n := 0
	m.pipelines.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
