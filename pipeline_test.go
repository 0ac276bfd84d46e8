package servicebridge

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

type pipelineTestService interface {
	Compute(ctx context.Context, a int, out *int) (int, error)
}

func newTestDescriptor(t *testing.T, names ...string) *MethodDescriptor {
	t.Helper()
	serviceType := reflect.TypeOf((*pipelineTestService)(nil)).Elem()
	info, ok := reflection.New().Method(serviceType, "Compute")
	require.True(t, ok)
	return newMethodDescriptor(serviceType, serviceType, info, names)
}

func newTestInvocation(t *testing.T, args ...any) *MethodInvocation {
	t.Helper()
	inv, err := NewMethodInvocation(newTestDescriptor(t, "ctx", "a", "out"), nil, nil, args...)
	require.NoError(t, err)
	return inv
}

func recordingInterceptor(name string, events *[]string) Interceptor {
	return InterceptorFunc(func(inv *MethodInvocation, next InvokeNext) *MethodReturn {
		*events = append(*events, name+":in")
		ret := next(inv)
		*events = append(*events, name+":out")
		return ret
	})
}

func TestPipelineSentinel(t *testing.T) {
	assert.Same(t, EmptyPipeline(), EmptyPipeline())
	assert.True(t, EmptyPipeline().IsSentinel())

	built := NewPipeline()
	assert.NotSame(t, EmptyPipeline(), built)
	assert.False(t, built.IsSentinel())
	assert.Equal(t, 0, built.Len())
	assert.NotSame(t, built, NewPipeline(), "every built pipeline is distinct")

	assert.Equal(t, "<not built>", EmptyPipeline().String())
}

func TestPipelineInvoke(t *testing.T) {
	t.Run("order", func(t *testing.T) {
		var events []string
		p := NewPipeline(
			recordingInterceptor("I1", &events),
			recordingInterceptor("I2", &events),
			recordingInterceptor("I3", &events),
		)

		var out int
		inv := newTestInvocation(t, context.Background(), 1, &out)
		ret := p.Invoke(inv, func(inv *MethodInvocation) *MethodReturn {
			events = append(events, "target")
			r, err := inv.CreateReturn(7)
			require.NoError(t, err)
			return r
		})

		require.NoError(t, ret.Err())
		assert.Equal(t, 7, ret.ReturnValue())
		assert.Equal(t, []string{"I1:in", "I2:in", "I3:in", "target", "I3:out", "I2:out", "I1:out"}, events)
	})

	t.Run("no interceptors calls terminal", func(t *testing.T) {
		var out int
		called := false
		ret := NewPipeline().Invoke(newTestInvocation(t, context.Background(), 1, &out), func(inv *MethodInvocation) *MethodReturn {
			called = true
			return inv.CreateExceptionReturn(nil)
		})
		assert.True(t, called)
		assert.NoError(t, ret.Err())
	})

	t.Run("short circuit", func(t *testing.T) {
		p := NewPipeline(InterceptorFunc(func(inv *MethodInvocation, _ InvokeNext) *MethodReturn {
			r, err := inv.CreateReturn(42)
			require.NoError(t, err)
			return r
		}))

		var out int
		called := false
		ret := p.Invoke(newTestInvocation(t, context.Background(), 1, &out), func(inv *MethodInvocation) *MethodReturn {
			called = true
			return newMethodReturn(inv)
		})
		assert.False(t, called)
		assert.Equal(t, 42, ret.ReturnValue())
	})

	t.Run("next called repeatedly", func(t *testing.T) {
		attempts := 0
		retry := InterceptorFunc(func(inv *MethodInvocation, next InvokeNext) *MethodReturn {
			var ret *MethodReturn
			for i := 0; i < 3; i++ {
				ret = next(inv)
				if ret.Err() == nil {
					break
				}
			}
			return ret
		})

		var out int
		ret := NewPipeline(retry).Invoke(newTestInvocation(t, context.Background(), 1, &out), func(inv *MethodInvocation) *MethodReturn {
			attempts++
			if attempts < 3 {
				return inv.CreateExceptionReturn(errors.New("transient"))
			}
			return newMethodReturn(inv)
		})
		assert.NoError(t, ret.Err())
		assert.Equal(t, 3, attempts)
	})

	t.Run("nil return normalized", func(t *testing.T) {
		p := NewPipeline(InterceptorFunc(func(*MethodInvocation, InvokeNext) *MethodReturn {
			return nil
		}))

		var out int
		ret := p.Invoke(newTestInvocation(t, context.Background(), 1, &out), func(inv *MethodInvocation) *MethodReturn {
			return newMethodReturn(inv)
		})
		require.NotNil(t, ret)
		assert.ErrorIs(t, ret.Err(), ErrNilMethodReturn)
	})

	t.Run("nil interceptors skipped", func(t *testing.T) {
		var events []string
		p := NewPipeline(nil, recordingInterceptor("I1", &events), nil)
		assert.Equal(t, 1, p.Len())
		assert.Len(t, p.Interceptors(), 1)
	})
}

func TestPipelineString(t *testing.T) {
	p := NewPipeline(
		WithName("first", InterceptorFunc(func(inv *MethodInvocation, next InvokeNext) *MethodReturn { return next(inv) })),
		WithName("second", InterceptorFunc(func(inv *MethodInvocation, next InvokeNext) *MethodReturn { return next(inv) })),
	)
	assert.Equal(t, "[first -> second]", p.String())
}
