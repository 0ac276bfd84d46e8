package reflection

import (
	"fmt"
	"reflect"
)

// ConstructorInfo contains analyzed information about a constructor function.
type ConstructorInfo struct {
	Value          reflect.Value
	Type           reflect.Type
	Parameters     []reflect.Type
	ServiceType    reflect.Type // first result
	HasErrorReturn bool
}

// DependencyResolver resolves a single constructor parameter.
type DependencyResolver func(t reflect.Type) (any, error)

// AnalyzeConstructor validates that constructor is a func returning a value,
// optionally followed by an error.
func AnalyzeConstructor(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	typ := val.Type()
	if typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %v", typ)
	}
	if val.IsNil() {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	switch typ.NumOut() {
	case 1:
		if typ.Out(0) == errType {
			return nil, fmt.Errorf("constructor %v must return a value", typ)
		}
	case 2:
		if typ.Out(1) != errType {
			return nil, fmt.Errorf("constructor %v: second result must be error", typ)
		}
	default:
		return nil, fmt.Errorf("constructor %v must return a value and an optional error", typ)
	}

	info := &ConstructorInfo{
		Value:          val,
		Type:           typ,
		Parameters:     make([]reflect.Type, typ.NumIn()),
		ServiceType:    typ.Out(0),
		HasErrorReturn: typ.NumOut() == 2,
	}
	for i := range info.Parameters {
		info.Parameters[i] = typ.In(i)
	}

	return info, nil
}

// Invoke calls a constructor with dependencies obtained from resolver.
func (info *ConstructorInfo) Invoke(resolver DependencyResolver) (any, error) {
	if info.Type.IsVariadic() {
		return nil, fmt.Errorf("constructor %v: variadic constructors are not supported", info.Type)
	}

	args := make([]reflect.Value, len(info.Parameters))
	for i, paramType := range info.Parameters {
		value, err := resolver(paramType)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parameter %d (%v): %w", i, paramType, err)
		}
		if value == nil {
			args[i] = reflect.Zero(paramType)
			continue
		}
		arg := reflect.ValueOf(value)
		if !arg.Type().AssignableTo(paramType) {
			return nil, fmt.Errorf("parameter %d: %v is not assignable to %v", i, arg.Type(), paramType)
		}
		args[i] = arg
	}

	results := info.Value.Call(args)
	if info.HasErrorReturn {
		if errValue := results[1]; !errValue.IsNil() {
			return nil, errValue.Interface().(error)
		}
	}

	return results[0].Interface(), nil
}
