package servicebridge

import (
	"context"
	"fmt"
	"reflect"
)

// ServiceContainer is the container-agnostic view of a dependency injection
// container. Backends such as digbridge and dobridge implement it; the
// interception engine only ever talks to a container through this interface.
type ServiceContainer interface {
	Disposable

	// ID returns the unique identifier of this container instance.
	ID() string

	// GetInstance resolves a service of the given type. An empty name
	// resolves the unnamed registration.
	GetInstance(serviceType reflect.Type, name string) (any, error)

	// IsRegistered reports whether a service is registered under the type and name.
	IsRegistered(serviceType reflect.Type, name string) bool

	// IsDisposed reports whether Close has been called.
	IsDisposed() bool
}

// Resolve is a generic helper that resolves the unnamed service of type T.
func Resolve[T any](c ServiceContainer) (T, error) {
	return ResolveNamed[T](c, "")
}

// ResolveNamed is a generic helper that resolves a named service of type T.
func ResolveNamed[T any](c ServiceContainer, name string) (T, error) {
	var zero T

	if c == nil {
		return zero, ErrContainerNil
	}

	serviceType := reflect.TypeOf((*T)(nil)).Elem()

	instance, err := c.GetInstance(serviceType, name)
	if err != nil {
		return zero, err
	}

	result, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("type assertion failed: expected %T, got %T", zero, instance)
	}

	return result, nil
}

// MustResolve resolves a service and panics on error.
func MustResolve[T any](c ServiceContainer) T {
	result, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %v: %v", reflect.TypeOf((*T)(nil)).Elem(), err))
	}
	return result
}

// containerContextKey is the key for storing a container in a context.
type containerContextKey struct{}

// WithContainer returns a context carrying c. There is no process-wide
// current container; composition roots pass the container explicitly or
// through a context.
func WithContainer(ctx context.Context, c ServiceContainer) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, containerContextKey{}, c)
}

// ContainerFromContext returns the container stored by WithContainer.
func ContainerFromContext(ctx context.Context) (ServiceContainer, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(containerContextKey{}).(ServiceContainer)
	return c, ok && c != nil
}
