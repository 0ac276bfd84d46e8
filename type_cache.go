package servicebridge

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

// pairKey identifies a (service, implementation) type pair.
type pairKey struct {
	service reflect.Type
	impl    reflect.Type
}

// String returns a key unique to the pair, for singleflight.
func (k pairKey) String() string {
	return fmt.Sprintf("%p|%p", k.service, k.impl)
}

// typeDescriptors holds the method descriptors of one type pair.
type typeDescriptors struct {
	methods []*MethodDescriptor
	byName  map[string]*MethodDescriptor
}

// descriptorCache provides a thread-safe cache of method descriptors so the
// reflection work for a type pair happens once.
type descriptorCache struct {
	cache    sync.Map // map[pairKey]*typeDescriptors
	analyzer *reflection.Analyzer
}

func newDescriptorCache() *descriptorCache {
	return &descriptorCache{analyzer: reflection.New()}
}

// get returns the cached descriptors of the pair or creates them.
func (dc *descriptorCache) get(service, impl reflect.Type, registry *Registry) *typeDescriptors {
	key := pairKey{service: service, impl: impl}
	if cached, ok := dc.cache.Load(key); ok {
		return cached.(*typeDescriptors)
	}

	infos := dc.analyzer.Methods(service)
	td := &typeDescriptors{
		methods: make([]*MethodDescriptor, 0, len(infos)),
		byName:  make(map[string]*MethodDescriptor, len(infos)),
	}
	for _, info := range infos {
		names := registry.ParameterNames(service, impl, info.Name)
		desc := newMethodDescriptor(service, impl, info, names)
		td.methods = append(td.methods, desc)
		td.byName[desc.Name] = desc
	}

	// Another goroutine may have stored the same pair meanwhile.
	actual, _ := dc.cache.LoadOrStore(key, td)
	return actual.(*typeDescriptors)
}

// method returns the descriptor of a single method.
func (dc *descriptorCache) method(id MethodIdentity, registry *Registry) (*MethodDescriptor, bool) {
	desc, ok := dc.get(id.Service, id.Implementation, registry).byName[id.Name]
	return desc, ok
}

// size returns the number of cached type pairs.
func (dc *descriptorCache) size() int {
	n := 0
	dc.cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
