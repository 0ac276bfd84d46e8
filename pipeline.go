package servicebridge

import "strings"

// Pipeline is the immutable, ordered list of interceptors of one method.
type Pipeline struct {
	interceptors []Interceptor
}

// emptyPipeline marks a method whose pipeline has not been built yet.
var emptyPipeline = &Pipeline{}

// EmptyPipeline returns the "not built yet" sentinel. It is distinct from a
// built pipeline without interceptors; compare by identity.
func EmptyPipeline() *Pipeline {
	return emptyPipeline
}

// NewPipeline creates a built pipeline. Calls pass through the interceptors
// in the given order on the way in and in reverse order on the way out.
func NewPipeline(interceptors ...Interceptor) *Pipeline {
	p := &Pipeline{interceptors: make([]Interceptor, 0, len(interceptors))}
	for _, i := range interceptors {
		if i != nil {
			p.interceptors = append(p.interceptors, i)
		}
	}
	return p
}

// IsSentinel reports whether p is the "not built yet" marker.
func (p *Pipeline) IsSentinel() bool {
	return p == emptyPipeline
}

// Len returns the number of interceptors.
func (p *Pipeline) Len() int {
	return len(p.interceptors)
}

// Interceptors returns a copy of the interceptors in call order.
func (p *Pipeline) Interceptors() []Interceptor {
	return append([]Interceptor(nil), p.interceptors...)
}

// Invoke runs inv through every interceptor and then terminal.
func (p *Pipeline) Invoke(inv *MethodInvocation, terminal InvokeNext) *MethodReturn {
	if len(p.interceptors) == 0 {
		return terminal(inv)
	}

	next := terminal
	for i := len(p.interceptors) - 1; i >= 0; i-- {
		interceptor := p.interceptors[i]
		n := next
		next = func(inv *MethodInvocation) *MethodReturn {
			ret := interceptor.Invoke(inv, n)
			if ret == nil {
				return inv.CreateExceptionReturn(ErrNilMethodReturn)
			}
			return ret
		}
	}

	return next(inv)
}

// String lists the interceptor names.
func (p *Pipeline) String() string {
	if p.IsSentinel() {
		return "<not built>"
	}
	names := make([]string, len(p.interceptors))
	for i, interceptor := range p.interceptors {
		names[i] = interceptorName(interceptor)
	}
	return "[" + strings.Join(names, " -> ") + "]"
}
