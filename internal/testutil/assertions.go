package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// AssertPanicsWithError checks if a function panics with a specific error
func AssertPanicsWithError(t *testing.T, expectedError error, f func(), msgAndArgs ...interface{}) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			assert.Fail(t, "function did not panic", msgAndArgs...)
			return
		}

		err, ok := r.(error)
		if !ok {
			assert.Fail(t, "panic value is not an error", "value: %v", r)
			return
		}

		assert.ErrorIs(t, err, expectedError, msgAndArgs...)
	}()
	f()
}

// AssertEvents checks the recorded events in order.
func AssertEvents(t *testing.T, recorder *Recorder, expected ...string) {
	t.Helper()
	assert.Equal(t, expected, recorder.Events())
}

// AssertErrorType checks if an error is of a specific type
func AssertErrorType[T error](t *testing.T, err error, msgAndArgs ...interface{}) T {
	t.Helper()
	var target T
	assert.ErrorAs(t, err, &target, msgAndArgs...)
	return target
}

// AssertDisposed checks if an error indicates a disposed container
func AssertDisposed(t *testing.T, err error) {
	t.Helper()
	assert.Error(t, err)
	assert.True(t, servicebridge.IsDisposed(err), "expected disposed error, got: %v", err)
}

// AssertNotFound checks if an error indicates a missing service
func AssertNotFound(t *testing.T, err error) {
	t.Helper()
	assert.Error(t, err)
	assert.True(t, servicebridge.IsNotFound(err), "expected service not found error, got: %v", err)
}

// RequireResolve resolves T and fails the test on error.
func RequireResolve[T any](t *testing.T, c servicebridge.ServiceContainer) T {
	t.Helper()
	service, err := servicebridge.Resolve[T](c)
	require.NoError(t, err, "failed to resolve service of type %T", *new(T))
	return service
}
