package servicebridge_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/testutil"
)

func declNames(decls []servicebridge.Declaration) []string {
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.String()
	}
	return names
}

func TestRegistryDeclarations(t *testing.T) {
	implType := reflect.TypeOf(&testutil.CalculatorImpl{})

	t.Run("order", func(t *testing.T) {
		r := servicebridge.NewRegistry()
		r.Intercept(implType).Method("Add", servicebridge.UseNamed("impl-add")).All(servicebridge.UseNamed("impl-all"))
		servicebridge.For[testutil.Calculator](r).
			Method("Add", servicebridge.UseNamed("svc-add")).
			All(servicebridge.UseNamed("svc-all"))

		decls := r.Declarations(testutil.CalculatorType, implType, "Add")
		assert.Equal(t, []string{
			`UseNamed("svc-all")`, `UseNamed("svc-add")`, `UseNamed("impl-all")`, `UseNamed("impl-add")`,
		}, declNames(decls))

		decls = r.Declarations(testutil.CalculatorType, implType, "Divide")
		assert.Equal(t, []string{`UseNamed("svc-all")`, `UseNamed("impl-all")`}, declNames(decls))
	})

	t.Run("implementation equal to service is read once", func(t *testing.T) {
		r := servicebridge.NewRegistry()
		r.Intercept(implType).Method("Add", servicebridge.UseNamed("a"))

		decls := r.Declarations(implType, implType, "Add")
		assert.Len(t, decls, 1)
	})

	t.Run("duplicates kept once", func(t *testing.T) {
		r := servicebridge.NewRegistry()
		shared := servicebridge.UseNamed("shared")
		servicebridge.For[testutil.Calculator](r).All(shared).Method("Add", shared, nil)
		r.Intercept(implType).Method("Add", shared, servicebridge.UseNamed("other"))

		decls := r.Declarations(testutil.CalculatorType, implType, "Add")
		assert.Equal(t, []string{`UseNamed("shared")`, `UseNamed("other")`}, declNames(decls))
	})

	t.Run("equal declarations kept once", func(t *testing.T) {
		r := servicebridge.NewRegistry()
		servicebridge.For[testutil.Calculator](r).All(servicebridge.UseNamed("logging"), servicebridge.UseTypeOf[*testutil.CountingInterceptor]())
		r.Intercept(implType).
			All(servicebridge.UseNamed("logging"), servicebridge.UseTypeOf[*testutil.CountingInterceptor]()).
			Method("Add", servicebridge.UseNamed("logging", servicebridge.PerCall()))

		decls := r.Declarations(testutil.CalculatorType, implType, "Add")
		assert.Equal(t, []string{
			`UseNamed("logging")`, `UseType(*CountingInterceptor)`, `UseNamed("logging")`,
		}, declNames(decls), "a different lifetime is a different declaration")
	})

	t.Run("named entries follow typed entries", func(t *testing.T) {
		r := servicebridge.NewRegistry()
		r.InterceptNamed(testutil.CalculatorType.String()).Method("Add", servicebridge.UseNamed("from-file"))
		servicebridge.For[testutil.Calculator](r).Method("Add", servicebridge.UseNamed("from-code"))

		decls := r.Declarations(testutil.CalculatorType, implType, "Add")
		assert.Equal(t, []string{`UseNamed("from-code")`, `UseNamed("from-file")`}, declNames(decls))
		assert.True(t, r.HasDeclarations(testutil.CalculatorType))
		assert.False(t, r.HasDeclarations(implType))
	})
}

func TestRegistryParameterNames(t *testing.T) {
	implType := reflect.TypeOf(&testutil.CalculatorImpl{})
	r := servicebridge.NewRegistry()
	r.Intercept(implType).Parameters("Add", "x", "y").Parameters("Divide", "dividend", "divisor")
	servicebridge.For[testutil.Calculator](r).Parameters("Add", "a", "b")

	assert.Equal(t, []string{"a", "b"}, r.ParameterNames(testutil.CalculatorType, implType, "Add"))
	assert.Equal(t, []string{"dividend", "divisor"}, r.ParameterNames(testutil.CalculatorType, implType, "Divide"))
	assert.Nil(t, r.ParameterNames(testutil.CalculatorType, implType, "Sum"))
}

func TestRegisterProxy(t *testing.T) {
	r := servicebridge.NewRegistry()
	require.NoError(t, servicebridge.RegisterProxy(r, testutil.NewCalculatorProxy))

	_, ok := r.ProxyFactory(testutil.CalculatorType)
	assert.True(t, ok)

	err := servicebridge.RegisterProxy(r, testutil.NewCalculatorProxy)
	assert.ErrorIs(t, err, servicebridge.ErrAlreadyRegistered)

	err = servicebridge.RegisterProxy(r, func(target *testutil.CalculatorImpl, bind servicebridge.BindFunc) (*testutil.CalculatorImpl, error) {
		return target, nil
	})
	assert.ErrorIs(t, err, servicebridge.ErrProxyNotInterface)

	err = servicebridge.RegisterProxy[testutil.Greeter](r, nil)
	var regErr *servicebridge.RegistrationError
	assert.ErrorAs(t, err, &regErr)
}

func TestRegistrySummary(t *testing.T) {
	r := servicebridge.NewRegistry()
	servicebridge.For[testutil.Calculator](r).All(servicebridge.UseNamed("log")).Method("Add", servicebridge.UseNamed("timing"))
	r.InterceptNamed("app.Other").Method("Run", servicebridge.UseNamed("retry"))

	summary := r.Summary()
	require.Len(t, summary, 2)
	assert.Equal(t, "app.Other", summary[0].Type)
	assert.Equal(t, []string{`UseNamed("retry")`}, summary[0].Methods["Run"])
	assert.Equal(t, testutil.CalculatorType.String(), summary[1].Type)
	assert.Equal(t, []string{`UseNamed("log")`}, summary[1].All)
}

func TestModules(t *testing.T) {
	t.Run("install", func(t *testing.T) {
		observability := servicebridge.NewModule("observability",
			servicebridge.InterceptAll[testutil.Calculator](servicebridge.UseNamed("log")),
			servicebridge.InterceptMethod[testutil.Calculator]("Add", servicebridge.UseNamed("timing")),
			servicebridge.NameParameters[testutil.Calculator]("Add", "a", "b"),
		)
		app := servicebridge.NewModule("app",
			observability,
			nil,
			servicebridge.ProxyOf(testutil.NewCalculatorProxy),
		)

		r := servicebridge.NewRegistry()
		require.NoError(t, r.Install(app, nil))

		_, ok := r.ProxyFactory(testutil.CalculatorType)
		assert.True(t, ok)
		assert.Len(t, r.Declarations(testutil.CalculatorType, nil, "Add"), 2)
		assert.Equal(t, []string{"a", "b"}, r.ParameterNames(testutil.CalculatorType, nil, "Add"))
	})

	t.Run("errors name the module", func(t *testing.T) {
		bad := servicebridge.NewModule("bad",
			servicebridge.InterceptMethod[testutil.Calculator]("Multiply", servicebridge.UseNamed("x")))
		outer := servicebridge.NewModule("outer", bad)

		err := servicebridge.NewRegistry().Install(outer)
		require.Error(t, err)

		var moduleErr servicebridge.ModuleError
		require.ErrorAs(t, err, &moduleErr)
		assert.Equal(t, "outer", moduleErr.Module)
		assert.ErrorIs(t, err, servicebridge.ErrMethodNotFound)
		assert.Contains(t, err.Error(), "module outer: module bad:")
	})
}

func TestDeclarations(t *testing.T) {
	c := testutil.NewMapContainer()
	counter := &testutil.CountingInterceptor{}
	testutil.AddInstance(c, "", counter)
	c.AddInterceptor("named", counter)
	testutil.AddInstance(c, "", &testutil.Plain{})

	t.Run("UseTypeOf", func(t *testing.T) {
		i, err := servicebridge.UseTypeOf[*testutil.CountingInterceptor]().CreateInterceptor(c)
		require.NoError(t, err)
		assert.Same(t, counter, i)
	})

	t.Run("UseType not an interceptor", func(t *testing.T) {
		_, err := servicebridge.UseType(reflect.TypeOf(&testutil.Plain{})).CreateInterceptor(c)
		assert.ErrorIs(t, err, servicebridge.ErrNotInterceptor)

		_, err = servicebridge.UseType(nil).CreateInterceptor(c)
		assert.ErrorIs(t, err, servicebridge.ErrServiceTypeNil)
	})

	t.Run("UseNamed", func(t *testing.T) {
		i, err := servicebridge.UseNamed("named").CreateInterceptor(c)
		require.NoError(t, err)
		assert.Same(t, counter, i)

		_, err = servicebridge.UseNamed("").CreateInterceptor(c)
		assert.ErrorIs(t, err, servicebridge.ErrConfigNameEmpty)

		_, err = servicebridge.UseNamed("named").CreateInterceptor(nil)
		assert.ErrorIs(t, err, servicebridge.ErrContainerNil)
	})

	t.Run("Use nil", func(t *testing.T) {
		_, err := servicebridge.Use(nil).CreateInterceptor(c)
		assert.ErrorIs(t, err, servicebridge.ErrInterceptorNil)
		assert.Equal(t, "Use(nil)", servicebridge.Use(nil).String())

		_, err = servicebridge.UseFunc("nil", nil).CreateInterceptor(c)
		assert.ErrorIs(t, err, servicebridge.ErrInterceptorNil)

		_, err = servicebridge.UseFactory("nil", nil).CreateInterceptor(c)
		assert.ErrorIs(t, err, servicebridge.ErrInterceptorNil)
	})

	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "UseType(*CountingInterceptor)", servicebridge.UseTypeOf[*testutil.CountingInterceptor]().String())
		assert.Equal(t, `UseFactory("f")`, servicebridge.UseFactory("f", nil).String())
		assert.Equal(t, "Use(timing)", servicebridge.Use(servicebridge.WithName("timing", counter)).String())
	})
}
