package servicebridge

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	goerrors "github.com/go-errors/errors"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that are usually wrapped in typed errors when returned.

var (
	// Container errors.
	ErrContainerNil      = errors.New("service container cannot be nil")
	ErrContainerDisposed = errors.New("service container has been disposed")

	// Service errors.
	ErrServiceNotFound    = errors.New("service not found")
	ErrServiceTypeNil     = errors.New("service type cannot be nil")
	ErrAlreadyRegistered  = errors.New("service already registered")
	ErrConstructorInvalid = errors.New("invalid constructor")

	// Interception errors.
	ErrInterceptorNil    = errors.New("interceptor cannot be nil")
	ErrNotInterceptor    = errors.New("resolved service does not implement Interceptor")
	ErrDeclarationNil    = errors.New("interceptor declaration cannot be nil")
	ErrNilMethodReturn   = errors.New("interceptor returned a nil method return")
	ErrTableNotPointer   = errors.New("method table must be a non-nil pointer to a struct")
	ErrProxyNotInterface = errors.New("proxies can only be registered for interface types")
	ErrMethodNotFound    = errors.New("method not found")
	ErrOutputNil         = errors.New("output parameter pointer is nil")
	ErrResultCount       = errors.New("wrong number of return values")
	ErrRegistryNil       = errors.New("registry cannot be nil")

	// Configuration file errors.
	ErrUnknownConfigFormat = errors.New("unknown configuration file format")
	ErrConfigTypeEmpty     = errors.New("type name cannot be empty")
	ErrConfigMethodEmpty   = errors.New("method name cannot be empty")
	ErrConfigNameEmpty     = errors.New("interceptor name cannot be empty")
)

var (
	_ error = (*ResolutionError)(nil)
	_ error = (*RegistrationError)(nil)
	_ error = (*ConfigurationError)(nil)
	_ error = (*SignatureMismatchError)(nil)
	_ error = (*ArgumentTypeError)(nil)
	_ error = (*PanicError)(nil)
	_ error = (*ConfigFileError)(nil)
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// ResolutionError wraps errors that occur while resolving a service from a container.
type ResolutionError struct {
	ServiceType reflect.Type
	Name        string // empty for unnamed services
	Cause       error
}

func (e *ResolutionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("failed to resolve %s (name: %q): %v", formatType(e.ServiceType), e.Name, e.Cause)
	}
	return fmt.Sprintf("failed to resolve %s: %v", formatType(e.ServiceType), e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// RegistrationError wraps errors during service or proxy registration.
type RegistrationError struct {
	ServiceType reflect.Type
	Operation   string // "register", "decorate", "register-proxy", ...
	Cause       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, formatType(e.ServiceType), e.Cause)
}

func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// ConfigurationError is raised while building a pipeline when a declared
// interceptor cannot be created. It is fatal for the method it belongs to.
type ConfigurationError struct {
	Service     reflect.Type
	Method      string
	Declaration string
	Cause       error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("interception configuration error")
	if e.Service != nil {
		b.WriteString(fmt.Sprintf(" for %s", formatType(e.Service)))
		if e.Method != "" {
			b.WriteString("." + e.Method)
		}
	}
	if e.Declaration != "" {
		b.WriteString(fmt.Sprintf(" (interceptor %s)", e.Declaration))
	}
	b.WriteString(fmt.Sprintf(": %v", e.Cause))
	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// SignatureMismatchError indicates a method table field that cannot be bound
// to the target's method.
type SignatureMismatchError struct {
	Method   string
	Expected reflect.Type
	Actual   reflect.Type
	Cause    error
}

func (e *SignatureMismatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot bind method %s: %v", e.Method, e.Cause)
	}
	return fmt.Sprintf("cannot bind method %s: expected %s, got %s", e.Method, formatType(e.Expected), formatType(e.Actual))
}

func (e *SignatureMismatchError) Unwrap() error {
	return e.Cause
}

// ArgumentTypeError indicates an interceptor tried to store a value that is
// not assignable to the declared type of an argument, output or result.
type ArgumentTypeError struct {
	Name     string
	Expected reflect.Type
	Actual   reflect.Type
}

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("%s: cannot use %s as %s", e.Name, formatType(e.Actual), formatType(e.Expected))
}

// PanicError carries a panic raised by an intercepted target. The dispatcher
// re-raises Value when a PanicError reaches the caller, so the caller sees the
// original panic.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(value any) *PanicError {
	return &PanicError{
		Value: value,
		Stack: goerrors.Wrap(value, 1).Stack(),
	}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ConfigFileError wraps errors that occur while loading a declarative
// interception file.
type ConfigFileError struct {
	Path  string
	Entry int // -1 when the file itself failed
	Cause error
}

func (e *ConfigFileError) Error() string {
	if e.Entry >= 0 {
		return fmt.Sprintf("interception config %s: entry %d: %v", e.Path, e.Entry, e.Cause)
	}
	return fmt.Sprintf("interception config %s: %v", e.Path, e.Cause)
}

func (e *ConfigFileError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err indicates a missing service.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}

// IsDisposed reports whether err indicates a disposed container.
func IsDisposed(err error) bool {
	return errors.Is(err, ErrContainerDisposed)
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Func:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
