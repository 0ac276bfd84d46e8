package servicebridge

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorsTestService interface {
	Run() error
}

func TestSentinelErrors(t *testing.T) {
	sentinelErrors := []struct {
		err     error
		message string
	}{
		{ErrContainerNil, "service container cannot be nil"},
		{ErrContainerDisposed, "service container has been disposed"},
		{ErrServiceNotFound, "service not found"},
		{ErrServiceTypeNil, "service type cannot be nil"},
		{ErrAlreadyRegistered, "service already registered"},
		{ErrInterceptorNil, "interceptor cannot be nil"},
		{ErrNilMethodReturn, "interceptor returned a nil method return"},
		{ErrTableNotPointer, "method table must be a non-nil pointer to a struct"},
		{ErrUnknownConfigFormat, "unknown configuration file format"},
	}

	for _, tt := range sentinelErrors {
		t.Run(tt.message, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}
}

func TestTypedErrors(t *testing.T) {
	serviceType := reflect.TypeOf((*errorsTestService)(nil)).Elem()

	t.Run("ResolutionError", func(t *testing.T) {
		err := &ResolutionError{ServiceType: serviceType, Name: "primary", Cause: ErrServiceNotFound}
		assert.Contains(t, err.Error(), "errorsTestService")
		assert.Contains(t, err.Error(), `"primary"`)
		assert.ErrorIs(t, err, ErrServiceNotFound)
		assert.True(t, IsNotFound(err))

		unnamed := &ResolutionError{ServiceType: serviceType, Cause: ErrContainerDisposed}
		assert.NotContains(t, unnamed.Error(), "name:")
		assert.True(t, IsDisposed(unnamed))
	})

	t.Run("RegistrationError", func(t *testing.T) {
		err := &RegistrationError{ServiceType: serviceType, Operation: "register", Cause: ErrAlreadyRegistered}
		assert.Equal(t, "failed to register errorsTestService: service already registered", err.Error())
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	})

	t.Run("ConfigurationError", func(t *testing.T) {
		err := &ConfigurationError{
			Service:     serviceType,
			Method:      "Run",
			Declaration: `UseNamed("audit")`,
			Cause:       ErrServiceNotFound,
		}
		assert.Equal(t,
			`interception configuration error for errorsTestService.Run (interceptor UseNamed("audit")): service not found`,
			err.Error())
		assert.ErrorIs(t, err, ErrServiceNotFound)

		bare := &ConfigurationError{Cause: ErrInterceptorNil}
		assert.Equal(t, "interception configuration error: interceptor cannot be nil", bare.Error())
	})

	t.Run("SignatureMismatchError", func(t *testing.T) {
		expected := reflect.TypeOf(func(int) error { return nil })
		actual := reflect.TypeOf(func(string) error { return nil })

		err := &SignatureMismatchError{Method: "Run", Expected: expected, Actual: actual}
		assert.Contains(t, err.Error(), "func(int) error")
		assert.Contains(t, err.Error(), "func(string) error")
		assert.Nil(t, err.Unwrap())

		missing := &SignatureMismatchError{Method: "Stop", Cause: ErrMethodNotFound}
		assert.ErrorIs(t, missing, ErrMethodNotFound)
	})

	t.Run("ArgumentTypeError", func(t *testing.T) {
		err := &ArgumentTypeError{Name: "a", Expected: reflect.TypeOf(0), Actual: reflect.TypeOf("")}
		assert.Equal(t, "a: cannot use string as int", err.Error())
	})

	t.Run("PanicError", func(t *testing.T) {
		cause := errors.New("boom")
		err := newPanicError(cause)
		assert.Equal(t, "panic: boom", err.Error())
		assert.ErrorIs(t, err, cause)
		assert.NotEmpty(t, err.Stack)

		nonError := newPanicError("text")
		assert.Nil(t, nonError.Unwrap())
	})

	t.Run("ConfigFileError", func(t *testing.T) {
		entry := &ConfigFileError{Path: "a.yaml", Entry: 2, Cause: ErrConfigTypeEmpty}
		assert.Equal(t, "interception config a.yaml: entry 2: type name cannot be empty", entry.Error())

		file := &ConfigFileError{Path: "a.yaml", Entry: -1, Cause: ErrUnknownConfigFormat}
		assert.Equal(t, "interception config a.yaml: unknown configuration file format", file.Error())
		assert.ErrorIs(t, file, ErrUnknownConfigFormat)
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", &ResolutionError{ServiceType: serviceType, Cause: ErrServiceNotFound})

		var resErr *ResolutionError
		require.ErrorAs(t, err, &resErr)
		assert.Equal(t, serviceType, resErr.ServiceType)
	})
}

func TestFormatType(t *testing.T) {
	type local struct{}

	tests := []struct {
		name     string
		typ      reflect.Type
		expected string
	}{
		{"nil", nil, "<nil>"},
		{"builtin", reflect.TypeOf(0), "int"},
		{"pointer", reflect.TypeOf(&local{}), "*local"},
		{"slice", reflect.TypeOf([]local{}), "[]local"},
		{"interface", reflect.TypeOf((*errorsTestService)(nil)).Elem(), "errorsTestService"},
		{"func", reflect.TypeOf(func(int) {}), "func(int)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatType(tt.typ))
		})
	}
}
