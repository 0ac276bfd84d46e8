package digbridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/digbridge"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/testutil"
)

func TestContainer(t *testing.T) {
	testutil.RunBackendTests(t, func(opts ...servicebridge.Option) testutil.Backend {
		return digbridge.New(opts...)
	})
}

type storeParams struct {
	dig.In

	Primary   testutil.Calculator `name:"primary"`
	Secondary testutil.Calculator `name:"secondary" optional:"true"`
}

type pair struct {
	primary, secondary testutil.Calculator
}

func TestContainer_ParamObjects(t *testing.T) {
	registry := servicebridge.NewRegistry()
	require.NoError(t, servicebridge.RegisterProxy(registry, testutil.NewCalculatorProxy))
	counter := &testutil.CountingInterceptor{}
	servicebridge.For[testutil.Calculator](registry).All(servicebridge.Use(counter))

	c := digbridge.New(servicebridge.WithRegistry(registry))
	defer c.Close()

	require.NoError(t, c.Register(testutil.NewCalculator, servicebridge.Name("primary"), servicebridge.As(new(testutil.Calculator))))
	require.NoError(t, c.Register(func(p storeParams) *pair {
		return &pair{primary: p.Primary, secondary: p.Secondary}
	}))

	p := testutil.RequireResolve[*pair](t, c)
	assert.Nil(t, p.secondary)
	assert.IsType(t, &testutil.CalculatorProxy{}, p.primary, "named dependencies are decorated")

	_, err := p.primary.Add(2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter.Calls())
}

func TestContainer_Identity(t *testing.T) {
	a := digbridge.New()
	b := digbridge.New()
	defer a.Close()
	defer b.Close()

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Same(t, a, a.Engine().Container())
}
