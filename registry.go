package servicebridge

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry records which interceptors apply to which types and methods, and
// how proxies for interface services are shaped. It is expected to be filled
// before containers using it resolve services; pipelines are never rebuilt.
type Registry struct {
	mu sync.RWMutex

	types map[reflect.Type]*typeEntry

	// named holds declarations loaded by type name from configuration files.
	named map[string]*typeEntry

	proxies map[reflect.Type]ProxyFactory
}

type typeEntry struct {
	all     []Declaration
	methods map[string][]Declaration
	params  map[string][]string
}

func newTypeEntry() *typeEntry {
	return &typeEntry{
		methods: make(map[string][]Declaration),
		params:  make(map[string][]string),
	}
}

// ProxyFactory builds a proxy of an interface service around target.
// bind fills the func fields of a method table with dispatchers.
type ProxyFactory func(target any, bind BindFunc) (any, error)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:   make(map[reflect.Type]*typeEntry),
		named:   make(map[string]*typeEntry),
		proxies: make(map[reflect.Type]ProxyFactory),
	}
}

// TypeBuilder adds declarations for one type.
type TypeBuilder struct {
	registry *Registry
	t        reflect.Type
	name     string
}

// Intercept starts declarations for t. t may be an interface, a func type or
// a concrete implementation type such as *MyService.
func (r *Registry) Intercept(t reflect.Type) *TypeBuilder {
	return &TypeBuilder{registry: r, t: t}
}

// InterceptNamed starts declarations for the type whose reflect.Type.String()
// equals name. Configuration files use it.
func (r *Registry) InterceptNamed(name string) *TypeBuilder {
	return &TypeBuilder{registry: r, name: name}
}

// For is the generic form of Registry.Intercept.
//
//	servicebridge.For[Calculator](registry).
//	    All(servicebridge.UseNamed("logging")).
//	    Method("Add", servicebridge.Use(&Timing{}))
func For[T any](r *Registry) *TypeBuilder {
	return r.Intercept(reflect.TypeOf((*T)(nil)).Elem())
}

func (b *TypeBuilder) entry() *typeEntry {
	r := b.registry
	if b.t == nil {
		e, ok := r.named[b.name]
		if !ok {
			e = newTypeEntry()
			r.named[b.name] = e
		}
		return e
	}

	e, ok := r.types[b.t]
	if !ok {
		e = newTypeEntry()
		r.types[b.t] = e
	}
	return e
}

// All adds declarations that apply to every method of the type.
func (b *TypeBuilder) All(decls ...Declaration) *TypeBuilder {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	e := b.entry()
	e.all = append(e.all, compact(decls)...)
	return b
}

// Method adds declarations for one method.
func (b *TypeBuilder) Method(name string, decls ...Declaration) *TypeBuilder {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	e := b.entry()
	e.methods[name] = append(e.methods[name], compact(decls)...)
	return b
}

// Parameters names the parameters of a method. Interceptors see the names on
// MethodInvocation arguments; unnamed parameters are called arg0..argN.
func (b *TypeBuilder) Parameters(method string, names ...string) *TypeBuilder {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	b.entry().params[method] = append([]string(nil), names...)
	return b
}

func compact(decls []Declaration) []Declaration {
	return lo.Filter(decls, func(d Declaration, _ int) bool {
		return d != nil
	})
}

// RegisterProxy registers the proxy shape of the interface service T.
//
//	type calculatorProxy struct {
//	    table struct {
//	        Add func(a, b int) (int, error)
//	    }
//	}
//
//	func (p *calculatorProxy) Add(a, b int) (int, error) { return p.table.Add(a, b) }
//
//	servicebridge.RegisterProxy[Calculator](registry, func(target Calculator, bind servicebridge.BindFunc) (Calculator, error) {
//	    p := &calculatorProxy{}
//	    return p, bind(&p.table)
//	})
func RegisterProxy[T any](r *Registry, factory func(target T, bind BindFunc) (T, error)) error {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Interface {
		return &RegistrationError{ServiceType: t, Operation: "register proxy for", Cause: ErrProxyNotInterface}
	}
	if factory == nil {
		return &RegistrationError{ServiceType: t, Operation: "register proxy for", Cause: ErrConstructorInvalid}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.proxies[t]; exists {
		return &RegistrationError{ServiceType: t, Operation: "register proxy for", Cause: ErrAlreadyRegistered}
	}

	r.proxies[t] = func(target any, bind BindFunc) (any, error) {
		typed, ok := target.(T)
		if !ok {
			return nil, fmt.Errorf("proxy target %T does not implement %s", target, formatType(t))
		}
		return factory(typed, bind)
	}
	return nil
}

// ProxyFactory returns the proxy factory registered for t.
func (r *Registry) ProxyFactory(t reflect.Type) (ProxyFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.proxies[t]
	return f, ok
}

// entries returns the code-registered entry of t followed by the one loaded
// by name. Callers hold the read lock.
func (r *Registry) entries(t reflect.Type) []*typeEntry {
	if t == nil {
		return nil
	}
	var result []*typeEntry
	if e, ok := r.types[t]; ok {
		result = append(result, e)
	}
	if e, ok := r.named[t.String()]; ok {
		result = append(result, e)
	}
	return result
}

// Declarations returns the declarations of one method in pipeline order:
// type-wide then method declarations of the service type, followed by those
// of the implementation type when it differs. A declaration listed more
// than once is kept at its first position; named and typed declarations
// count as the same when they resolve the same interceptor with the same
// lifetime.
func (r *Registry) Declarations(service, impl reflect.Type, method string) []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var decls []Declaration
	collect := func(t reflect.Type) {
		for _, e := range r.entries(t) {
			decls = append(decls, e.all...)
		}
		for _, e := range r.entries(t) {
			decls = append(decls, e.methods[method]...)
		}
	}

	collect(service)
	if impl != nil && impl != service {
		collect(impl)
	}

	return dedupe(decls)
}

func dedupe(decls []Declaration) []Declaration {
	seen := make(map[any]struct{}, len(decls))
	result := make([]Declaration, 0, len(decls))
	for _, d := range decls {
		var key any = d
		if k, ok := d.(interface{ declarationKey() any }); ok {
			key = k.declarationKey()
		}
		if !reflect.TypeOf(key).Comparable() {
			result = append(result, d)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, d)
	}
	return result
}

// ParameterNames returns the registered parameter names of a method, looking
// at the service type first.
func (r *Registry) ParameterNames(service, impl reflect.Type, method string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range []reflect.Type{service, impl} {
		for _, e := range r.entries(t) {
			if names, ok := e.params[method]; ok {
				return names
			}
		}
	}
	return nil
}

// HasDeclarations reports whether any declaration targets t.
func (r *Registry) HasDeclarations(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries(t) {
		if len(e.all) > 0 || len(e.methods) > 0 {
			return true
		}
	}
	return false
}

// TypeSummary describes the declarations of one type for diagnostics.
type TypeSummary struct {
	Type    string
	All     []string
	Methods map[string][]string
}

// Summary lists every type with declarations, sorted by type name.
func (r *Registry) Summary() []TypeSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName := make(map[string]*TypeSummary)
	add := func(name string, e *typeEntry) {
		s, ok := byName[name]
		if !ok {
			s = &TypeSummary{Type: name, Methods: make(map[string][]string)}
			byName[name] = s
		}
		s.All = append(s.All, declarationNames(e.all)...)
		for m, decls := range e.methods {
			s.Methods[m] = append(s.Methods[m], declarationNames(decls)...)
		}
	}

	for t, e := range r.types {
		add(t.String(), e)
	}
	for name, e := range r.named {
		add(name, e)
	}

	names := lo.Keys(byName)
	sort.Strings(names)
	return lo.Map(names, func(name string, _ int) TypeSummary {
		return *byName[name]
	})
}

func declarationNames(decls []Declaration) []string {
	return lo.Map(decls, func(d Declaration, _ int) string {
		return d.String()
	})
}
