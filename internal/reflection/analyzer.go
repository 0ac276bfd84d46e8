package reflection

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

var (
	errType     = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// ErrorType is the reflected error interface.
func ErrorType() reflect.Type { return errType }

// ContextType is the reflected context.Context interface.
func ContextType() reflect.Type { return contextType }

// Analyzer performs reflection-based analysis of interceptable types.
// It caches analysis results per type.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[reflect.Type][]MethodInfo
}

// MethodInfo describes one callable method as seen by a caller, without a receiver.
type MethodInfo struct {
	Name string

	// Type is the func signature without the receiver.
	Type reflect.Type

	Parameters []ParameterInfo

	// Results excludes a trailing error.
	Results []reflect.Type

	ReturnsError bool
	Variadic     bool
}

// ParameterInfo describes a single method parameter.
type ParameterInfo struct {
	Type     reflect.Type
	Position int
	ByRef    bool // pointer to a non-struct value, written back to the caller
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		cache: make(map[reflect.Type][]MethodInfo),
	}
}

// Methods returns the interceptable methods of t.
//
// For interfaces these are the declared methods, for func types a single
// method named after the type, and for every other type its exported method set.
func (a *Analyzer) Methods(t reflect.Type) []MethodInfo {
	if t == nil {
		return nil
	}

	a.mu.RLock()
	if cached, ok := a.cache[t]; ok {
		a.mu.RUnlock()
		return cached
	}
	a.mu.RUnlock()

	var methods []MethodInfo
	switch t.Kind() {
	case reflect.Func:
		methods = []MethodInfo{AnalyzeFunc(FuncName(t), t)}
	case reflect.Interface:
		methods = make([]MethodInfo, 0, t.NumMethod())
		for i := 0; i < t.NumMethod(); i++ {
			m := t.Method(i)
			methods = append(methods, AnalyzeFunc(m.Name, m.Type))
		}
	default:
		methods = make([]MethodInfo, 0, t.NumMethod())
		for i := 0; i < t.NumMethod(); i++ {
			m := t.Method(i)
			if !m.IsExported() {
				continue
			}
			methods = append(methods, AnalyzeFunc(m.Name, stripReceiver(m.Type)))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if cached, ok := a.cache[t]; ok {
		return cached
	}
	a.cache[t] = methods
	return methods
}

// Method looks up a single method of t by name.
func (a *Analyzer) Method(t reflect.Type, name string) (MethodInfo, bool) {
	for _, m := range a.Methods(t) {
		if m.Name == name {
			return m, true
		}
	}
	return MethodInfo{}, false
}

// MethodNames returns the names of the interceptable methods of t in declaration order.
func (a *Analyzer) MethodNames(t reflect.Type) []string {
	methods := a.Methods(t)
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	return names
}

// Clear clears the analysis cache.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = make(map[reflect.Type][]MethodInfo)
}

// CacheSize returns the number of analyzed types.
func (a *Analyzer) CacheSize() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cache)
}

// AnalyzeFunc analyzes a func signature that has no receiver.
func AnalyzeFunc(name string, fnType reflect.Type) MethodInfo {
	if fnType == nil || fnType.Kind() != reflect.Func {
		panic(fmt.Sprintf("reflection: %v is not a func type", fnType))
	}

	info := MethodInfo{
		Name:       name,
		Type:       fnType,
		Variadic:   fnType.IsVariadic(),
		Parameters: make([]ParameterInfo, fnType.NumIn()),
	}

	for i := 0; i < fnType.NumIn(); i++ {
		in := fnType.In(i)
		info.Parameters[i] = ParameterInfo{
			Type:     in,
			Position: i,
			ByRef:    IsByRef(in),
		}
	}

	numOut := fnType.NumOut()
	if numOut > 0 && fnType.Out(numOut-1) == errType {
		info.ReturnsError = true
		numOut--
	}

	info.Results = make([]reflect.Type, numOut)
	for i := 0; i < numOut; i++ {
		info.Results[i] = fnType.Out(i)
	}

	return info
}

// IsByRef reports whether a parameter type is an output parameter: a pointer
// to anything but a struct. Pointers to structs are treated as references to
// objects and are not copied back.
func IsByRef(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() != reflect.Struct
}

// HasExportedMethods reports whether t exposes at least one method a proxy can forward.
func HasExportedMethods(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Func {
		return true
	}
	for i := 0; i < t.NumMethod(); i++ {
		if t.Method(i).IsExported() {
			return true
		}
	}
	return false
}

// FuncName returns the method name used for a func type.
func FuncName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return "Invoke"
}

// IsContext reports whether t is exactly context.Context.
func IsContext(t reflect.Type) bool {
	return t == contextType
}

func stripReceiver(methodType reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, methodType.NumIn()-1)
	for i := 1; i < methodType.NumIn(); i++ {
		in = append(in, methodType.In(i))
	}
	out := make([]reflect.Type, methodType.NumOut())
	for i := range out {
		out[i] = methodType.Out(i)
	}
	return reflect.FuncOf(in, out, methodType.IsVariadic())
}
