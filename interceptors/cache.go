package interceptors

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-logr/logr"
	json "github.com/goccy/go-json"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/reflection"
)

// Cache memoizes the results of successful calls, keyed by method and
// arguments. Results and arguments are JSON encoded; calls whose arguments
// cannot be encoded, and methods with output parameters or without results,
// are passed through. A context.Context first argument is not part of the key.
//
// Store failures never fail the call: they are logged and the target runs.
type Cache struct {
	Store  Store
	TTL    time.Duration
	Logger logr.Logger
}

// NewCache creates a Cache over store keeping entries for ttl.
func NewCache(store Store, ttl time.Duration) *Cache {
	return &Cache{Store: store, TTL: ttl, Logger: logr.Discard()}
}

func (c *Cache) Name() string {
	return "cache"
}

func (c *Cache) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	method := inv.Method()
	if !cacheable(method) {
		return next(inv)
	}

	key, err := CacheKey(inv)
	if err != nil {
		c.Logger.V(1).Info("call not cacheable", "method", method.String(), "reason", err.Error())
		return next(inv)
	}

	if ret, ok := c.lookup(inv, key); ok {
		return ret
	}

	ret := next(inv)
	if ret.Err() != nil {
		return ret
	}

	data, err := json.Marshal(ret.ReturnValues())
	if err == nil {
		err = c.Store.Set(key, data, c.TTL)
	}
	if err != nil {
		c.Logger.Error(err, "caching result failed", "method", method.String(), "key", key)
	}
	return ret
}

func (c *Cache) lookup(inv *servicebridge.MethodInvocation, key string) (*servicebridge.MethodReturn, bool) {
	data, ok, err := c.Store.Get(key)
	if err != nil {
		c.Logger.Error(err, "cache lookup failed", "key", key)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	values, err := decodeResults(inv.Method().Results, data)
	if err == nil {
		var ret *servicebridge.MethodReturn
		if ret, err = inv.CreateReturn(values...); err == nil {
			return ret, true
		}
	}

	c.Logger.Error(err, "cached entry unusable", "key", key)
	return nil, false
}

// CacheKey returns the key Cache uses for a call.
func CacheKey(inv *servicebridge.MethodInvocation) (string, error) {
	args := inv.Arguments()
	values := make([]any, 0, args.Len())
	for i := 0; i < args.Len(); i++ {
		arg := args.At(i)
		if reflection.IsContext(arg.Type) {
			continue
		}
		values = append(values, arg.Value())
	}

	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return inv.Method().String() + ":" + string(data), nil
}

func cacheable(method *servicebridge.MethodDescriptor) bool {
	if len(method.Results) == 0 {
		return false
	}
	for _, p := range method.Parameters {
		if p.ByRef {
			return false
		}
	}
	return true
}

func decodeResults(types []reflect.Type, data []byte) ([]any, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) != len(types) {
		return nil, fmt.Errorf("cached entry has %d results, want %d", len(raw), len(types))
	}

	values := make([]any, len(types))
	for i, t := range types {
		p := reflect.New(t)
		if err := json.Unmarshal(raw[i], p.Interface()); err != nil {
			return nil, err
		}
		values[i] = p.Elem().Interface()
	}
	return values, nil
}
