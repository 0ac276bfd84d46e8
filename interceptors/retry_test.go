package interceptors_test

import (
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/interceptors"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/testutil"
)

func quickRetry(maxRetries uint64) *interceptors.Retry {
	r := interceptors.NewRetry()
	r.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxRetries)
	}
	return r
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calc, impl := proxied(t, servicebridge.Use(quickRetry(3)), servicebridge.Use(failFirst(2, testutil.ErrTest)))

		sum, err := calc.Add(2, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, sum)
		assert.Equal(t, int64(1), impl.Calls())
	})

	t.Run("gives up with the last error", func(t *testing.T) {
		calc, impl := proxied(t, servicebridge.Use(quickRetry(2)))

		_, err := calc.Divide(1, 0)
		testutil.AssertErrorType[*testutil.DivideByZeroError](t, err)
		assert.Equal(t, int64(3), impl.Calls(), "one call and two retries")
	})

	t.Run("non retryable errors", func(t *testing.T) {
		r := quickRetry(5)
		r.Retryable = func(err error) bool {
			var dz *testutil.DivideByZeroError
			return !errors.As(err, &dz)
		}
		calc, impl := proxied(t, servicebridge.Use(r))

		_, err := calc.Divide(1, 0)
		require.Error(t, err)
		assert.Equal(t, int64(1), impl.Calls())
	})

	t.Run("panics are not retried", func(t *testing.T) {
		calc, impl := proxied(t, servicebridge.Use(quickRetry(5)))

		assert.PanicsWithValue(t, "boom", func() {
			calc.Explode("boom")
		})
		assert.Equal(t, int64(1), impl.Calls())
	})

	t.Run("default policy", func(t *testing.T) {
		r := &interceptors.Retry{}
		calc, impl := proxied(t, servicebridge.Use(r))

		_, err := calc.Add(1, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), impl.Calls())
		assert.Equal(t, "retry", r.Name())
	})
}
