package servicebridge_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/testutil"
)

const yamlConfig = `
interception:
  - type: "testutil.Calculator"
    interceptors: ["outer"]
    methods:
      - name: Add
        interceptors:
          - inner
          - name: counter
            lifetime: call
        parameters: ["a", "b"]
`

const tomlConfig = `
[[interception]]
type = "testutil.Calculator"
interceptors = ["outer"]

  [[interception.methods]]
  name = "Add"
  interceptors = ["inner", { name = "counter", lifetime = "call" }]
  parameters = ["a", "b"]
`

const jsonConfig = `{
  "interception": [
    {
      "type": "testutil.Calculator",
      "interceptors": ["outer"],
      "methods": [
        {"name": "Add", "interceptors": ["inner", {"name": "counter", "lifetime": "call"}], "parameters": ["a", "b"]}
      ]
    }
  ]
}`

func TestParseConfig(t *testing.T) {
	formats := []struct {
		format string
		data   string
	}{
		{"yaml", yamlConfig},
		{".yml", yamlConfig},
		{"toml", tomlConfig},
		{"json", jsonConfig},
	}

	for _, f := range formats {
		t.Run(f.format, func(t *testing.T) {
			cfg, err := servicebridge.ParseConfig([]byte(f.data), f.format)
			require.NoError(t, err)
			require.Len(t, cfg.Interception, 1)

			tc := cfg.Interception[0]
			assert.Equal(t, "testutil.Calculator", tc.Type)
			assert.Equal(t, []servicebridge.InterceptorRef{{Name: "outer"}}, tc.Interceptors)

			require.Len(t, tc.Methods, 1)
			m := tc.Methods[0]
			assert.Equal(t, "Add", m.Name)
			assert.Equal(t, []string{"a", "b"}, m.Parameters)
			assert.Equal(t, []servicebridge.InterceptorRef{
				{Name: "inner", Lifetime: servicebridge.PipelineLifetime},
				{Name: "counter", Lifetime: servicebridge.CallLifetime},
			}, m.Interceptors)
		})
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
		target error
	}{
		{"unknown format", yamlConfig, "ini", servicebridge.ErrUnknownConfigFormat},
		{"empty type", "interception:\n  - interceptors: [a]\n", "yaml", servicebridge.ErrConfigTypeEmpty},
		{"empty method", "interception:\n  - type: x\n    methods:\n      - interceptors: [a]\n", "yaml", servicebridge.ErrConfigMethodEmpty},
		{"empty interceptor", "interception:\n  - type: x\n    interceptors: [\"\"]\n", "yaml", servicebridge.ErrConfigNameEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := servicebridge.ParseConfig([]byte(tt.data), tt.format)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("bad lifetime", func(t *testing.T) {
		_, err := servicebridge.ParseConfig([]byte("interception:\n  - type: x\n    interceptors: [{name: a, lifetime: forever}]\n"), "yaml")
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := servicebridge.ParseConfig([]byte("interception: ["), "yaml")
		assert.Error(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("applies to the registry", func(t *testing.T) {
		path := filepath.Join(dir, "interception.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o600))

		rec := testutil.NewRecorder()
		counter := &testutil.CountingInterceptor{}
		c := testutil.NewMapContainer().
			AddInterceptor("outer", testutil.NewRecordingInterceptor("outer", rec)).
			AddInterceptor("inner", testutil.NewRecordingInterceptor("inner", rec)).
			AddInterceptor("counter", counter)

		engine, registry := testutil.NewCalculatorEngine(c)
		require.NoError(t, registry.LoadFile(path))
		assert.Equal(t, []string{"a", "b"}, registry.ParameterNames(testutil.CalculatorType, nil, "Add"))

		calc, err := testutil.ProxyCalculator(engine, testutil.NewCalculator())
		require.NoError(t, err)

		sum, err := calc.Add(2, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, sum)
		assert.Equal(t, int64(1), counter.Calls())
		testutil.AssertEvents(t, rec, "outer:before", "inner:before", "inner:after", "outer:after")

		id := servicebridge.MethodIdentity{
			Service:        testutil.CalculatorType,
			Implementation: reflect.TypeOf(&testutil.CalculatorImpl{}),
			Name:           "Add",
		}
		desc, ok := engine.Manager().Descriptor(id)
		require.True(t, ok)
		assert.Equal(t, "a", desc.Parameters[0].Name)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := servicebridge.LoadConfig(filepath.Join(dir, "missing.yaml"))
		var fileErr *servicebridge.ConfigFileError
		require.ErrorAs(t, err, &fileErr)
		assert.Equal(t, -1, fileErr.Entry)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid entry carries the path", func(t *testing.T) {
		path := filepath.Join(dir, "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[[interception]]\ninterceptors = [\"a\"]\n"), 0o600))

		_, err := servicebridge.LoadConfig(path)
		var fileErr *servicebridge.ConfigFileError
		require.ErrorAs(t, err, &fileErr)
		assert.Equal(t, path, fileErr.Path)
		assert.Equal(t, 0, fileErr.Entry)
		assert.ErrorIs(t, err, servicebridge.ErrConfigTypeEmpty)
	})

	t.Run("nil registry", func(t *testing.T) {
		var r *servicebridge.Registry
		assert.ErrorIs(t, r.Apply(&servicebridge.Config{}), servicebridge.ErrRegistryNil)
	})
}
