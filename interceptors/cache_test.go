package interceptors_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/interceptors"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/testutil"
)

type failingStore struct {
	err error
}

func (s failingStore) Get(string) ([]byte, bool, error)        { return nil, false, s.err }
func (s failingStore) Set(string, []byte, time.Duration) error { return s.err }
func (s failingStore) Delete(string) error                     { return s.err }

func TestCache(t *testing.T) {
	t.Run("hits skip the target", func(t *testing.T) {
		store := interceptors.NewMemoryStore()
		calc, impl := proxied(t, servicebridge.Use(interceptors.NewCache(store, time.Minute)))

		for i := 0; i < 3; i++ {
			sum, err := calc.Add(1, 2)
			require.NoError(t, err)
			assert.Equal(t, 3, sum)
		}
		assert.Equal(t, int64(1), impl.Calls())

		sum, err := calc.Add(2, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, sum)
		assert.Equal(t, int64(2), impl.Calls())
		assert.Equal(t, 2, store.Len())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		store := interceptors.NewMemoryStore()
		calc, impl := proxied(t, servicebridge.Use(interceptors.NewCache(store, 0)))

		for i := 0; i < 2; i++ {
			_, err := calc.Divide(1, 0)
			testutil.AssertErrorType[*testutil.DivideByZeroError](t, err)
		}
		assert.Equal(t, int64(2), impl.Calls())
		assert.Zero(t, store.Len())
	})

	t.Run("output parameters are not cached", func(t *testing.T) {
		store := interceptors.NewMemoryStore()
		calc, impl := proxied(t, servicebridge.Use(interceptors.NewCache(store, 0)))

		for i := 0; i < 2; i++ {
			j := 1
			calc.DoSomethingElseWithRef(1, &j)
			assert.Equal(t, 7, j)
		}
		assert.Equal(t, int64(2), impl.Calls())
		assert.Zero(t, store.Len())
	})

	t.Run("context is not part of the key", func(t *testing.T) {
		store := interceptors.NewMemoryStore()
		calc, impl := proxied(t, servicebridge.Use(interceptors.NewCache(store, 0)))

		type key struct{}
		assert.Equal(t, 3, calc.Sum(context.Background(), 1, 2))
		assert.Equal(t, 3, calc.Sum(context.WithValue(context.Background(), key{}, "other"), 1, 2))
		assert.Equal(t, int64(1), impl.Calls())
	})

	t.Run("store failures pass through", func(t *testing.T) {
		calc, impl := proxied(t, servicebridge.Use(interceptors.NewCache(failingStore{errors.New("store down")}, 0)))

		for i := 0; i < 2; i++ {
			sum, err := calc.Add(1, 2)
			require.NoError(t, err)
			assert.Equal(t, 3, sum)
		}
		assert.Equal(t, int64(2), impl.Calls())
	})

	t.Run("unusable entries are ignored", func(t *testing.T) {
		store := interceptors.NewMemoryStore()
		require.NoError(t, store.Set(`Calculator.Add:[1,2]`, []byte(`["three"]`), 0))
		calc, impl := proxied(t, servicebridge.Use(interceptors.NewCache(store, 0)))

		sum, err := calc.Add(1, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, sum)
		assert.Equal(t, int64(1), impl.Calls())
	})
}

func TestCacheKey(t *testing.T) {
	var keys []string
	capture := servicebridge.UseFunc("key", func(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
		key, err := interceptors.CacheKey(inv)
		require.NoError(t, err)
		keys = append(keys, key)
		return next(inv)
	})
	calc, _ := proxied(t, capture)

	_, _ = calc.Add(1, 2)
	calc.Sum(context.Background(), 4, 5)

	assert.Equal(t, []string{"Calculator.Add:[1,2]", "Calculator.Sum:[[4,5]]"}, keys)
}
