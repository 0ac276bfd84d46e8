package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

// Common test errors
var (
	ErrTest        = errors.New("test error")
	ErrIntentional = errors.New("intentional error")
)

// DivideByZeroError is returned by Calculator.Divide.
type DivideByZeroError struct {
	Dividend int
}

func (e *DivideByZeroError) Error() string {
	return fmt.Sprintf("cannot divide %d by zero", e.Dividend)
}

// Calculator is the intercepted test service.
type Calculator interface {
	Add(a, b int) (int, error)
	Divide(a, b int) (int, error)

	// DoSomethingElse sets *j to i + 5.
	DoSomethingElse(i int, j *int)

	// DoSomethingElseWithRef sets *j to i + *j + 5.
	DoSomethingElseWithRef(i int, j *int)

	// Explode panics with msg.
	Explode(msg string) int

	Sum(ctx context.Context, values ...int) int
}

// CalculatorImpl implements Calculator and counts the calls that reach it.
type CalculatorImpl struct {
	calls atomic.Int64
}

// NewCalculator creates a Calculator.
func NewCalculator() *CalculatorImpl {
	return &CalculatorImpl{}
}

// Calls returns the number of calls that reached the implementation.
func (c *CalculatorImpl) Calls() int64 {
	return c.calls.Load()
}

func (c *CalculatorImpl) Add(a, b int) (int, error) {
	c.calls.Add(1)
	return a + b, nil
}

func (c *CalculatorImpl) Divide(a, b int) (int, error) {
	c.calls.Add(1)
	if b == 0 {
		return 0, &DivideByZeroError{Dividend: a}
	}
	return a / b, nil
}

func (c *CalculatorImpl) DoSomethingElse(i int, j *int) {
	c.calls.Add(1)
	*j = i + 5
}

func (c *CalculatorImpl) DoSomethingElseWithRef(i int, j *int) {
	c.calls.Add(1)
	*j = i + *j + 5
}

func (c *CalculatorImpl) Explode(msg string) int {
	c.calls.Add(1)
	panic(msg)
}

func (c *CalculatorImpl) Sum(ctx context.Context, values ...int) int {
	c.calls.Add(1)
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

// CalculatorTable is the method table of CalculatorProxy.
type CalculatorTable struct {
	Add                    func(a, b int) (int, error)
	Divide                 func(a, b int) (int, error)
	DoSomethingElse        func(i int, j *int)
	DoSomethingElseWithRef func(i int, j *int)
	Explode                func(msg string) int
	Sum                    func(ctx context.Context, values ...int) int
}

// CalculatorProxy forwards every Calculator call through its method table.
type CalculatorProxy struct {
	Table  CalculatorTable
	Target Calculator
}

func (p *CalculatorProxy) Add(a, b int) (int, error) { return p.Table.Add(a, b) }

func (p *CalculatorProxy) Divide(a, b int) (int, error) { return p.Table.Divide(a, b) }

func (p *CalculatorProxy) DoSomethingElse(i int, j *int) { p.Table.DoSomethingElse(i, j) }

func (p *CalculatorProxy) DoSomethingElseWithRef(i int, j *int) { p.Table.DoSomethingElseWithRef(i, j) }

func (p *CalculatorProxy) Explode(msg string) int { return p.Table.Explode(msg) }

func (p *CalculatorProxy) Sum(ctx context.Context, values ...int) int {
	return p.Table.Sum(ctx, values...)
}

// NewCalculatorProxy is the proxy factory of Calculator.
func NewCalculatorProxy(target Calculator, bind servicebridge.BindFunc) (Calculator, error) {
	p := &CalculatorProxy{Target: target}
	if err := bind(&p.Table); err != nil {
		return nil, err
	}
	return p, nil
}

// Greeter has no registered proxy, so it is never intercepted.
type Greeter interface {
	Greet(name string) string
}

// GreeterImpl implements Greeter.
type GreeterImpl struct{}

func (GreeterImpl) Greet(name string) string {
	return "hello " + name
}

// Formatter is an intercepted func service.
type Formatter func(name string) (string, error)

// NewFormatter returns a Formatter that rejects empty names.
func NewFormatter() Formatter {
	return func(name string) (string, error) {
		if name == "" {
			return "", ErrIntentional
		}
		return "<" + name + ">", nil
	}
}

// Plain has no exported methods.
type Plain struct {
	Value int
}
