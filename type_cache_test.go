package servicebridge

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cacheTestImpl struct{}

func (cacheTestImpl) Compute(ctx context.Context, a int, out *int) (int, error) {
	return a, nil
}

func TestDescriptorCache(t *testing.T) {
	service := reflect.TypeOf((*pipelineTestService)(nil)).Elem()
	impl := reflect.TypeOf(cacheTestImpl{})

	registry := NewRegistry()
	registry.Intercept(service).Parameters("Compute", "ctx", "value", "result")

	dc := newDescriptorCache()
	td := dc.get(service, impl, registry)
	require.Len(t, td.methods, 1)
	assert.Same(t, td, dc.get(service, impl, registry), "descriptors are built once per pair")

	desc, ok := dc.method(MethodIdentity{Service: service, Implementation: impl, Name: "Compute"}, registry)
	require.True(t, ok)
	assert.Same(t, td.methods[0], desc)
	assert.Equal(t, "value", desc.Parameters[1].Name)
	assert.Equal(t, impl, desc.Implementation)

	_, ok = dc.method(MethodIdentity{Service: service, Implementation: impl, Name: "Missing"}, registry)
	assert.False(t, ok)

	dc.get(service, service, registry)
	assert.Equal(t, 2, dc.size(), "each implementation gets its own entry")
}

func TestDescriptorCache_Concurrent(t *testing.T) {
	service := reflect.TypeOf((*pipelineTestService)(nil)).Elem()
	dc := newDescriptorCache()
	registry := NewRegistry()

	results := make([]*typeDescriptors, 16)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = dc.get(service, service, registry)
		}(i)
	}
	wg.Wait()

	for _, td := range results {
		assert.Same(t, results[0], td)
	}
	assert.Equal(t, 1, dc.size())
}

func TestPairKey(t *testing.T) {
	service := reflect.TypeOf((*pipelineTestService)(nil)).Elem()
	impl := reflect.TypeOf(cacheTestImpl{})

	a := pairKey{service: service, impl: impl}
	b := pairKey{service: service, impl: service}
	assert.NotEqual(t, a.String(), b.String())
	assert.Equal(t, a.String(), pairKey{service: service, impl: impl}.String())
}
