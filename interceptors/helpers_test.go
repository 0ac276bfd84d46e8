package interceptors_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/testutil"
)

// proxied returns a Calculator whose every method runs through decls.
func proxied(t *testing.T, decls ...servicebridge.Declaration) (testutil.Calculator, *testutil.CalculatorImpl) {
	t.Helper()

	impl := testutil.NewCalculator()
	engine, registry := testutil.NewCalculatorEngine(testutil.NewMapContainer())
	servicebridge.For[testutil.Calculator](registry).All(decls...)

	calc, err := testutil.ProxyCalculator(engine, impl)
	require.NoError(t, err)
	return calc, impl
}

// failFirst fails the first n calls that reach it with err.
func failFirst(n int, err error) servicebridge.Interceptor {
	calls := 0
	return servicebridge.InterceptorFunc(func(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
		calls++
		if calls <= n {
			return inv.CreateExceptionReturn(err)
		}
		return next(inv)
	})
}
