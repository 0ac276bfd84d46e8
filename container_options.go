package servicebridge

import (
	"fmt"
	"reflect"
	"strings"
)

// A RegisterOption modifies how a backend registers a service.
type RegisterOption interface {
	applyRegisterOption(*RegisterOptions)
}

// RegisterOptions is the parsed form of a list of RegisterOption values.
// Backends obtain it with ApplyRegisterOptions.
type RegisterOptions struct {
	Name string

	// As lists the interface types the service is provided as. When empty
	// the service is provided as the constructor's result type.
	As []reflect.Type
}

// Validate checks the options for consistency.
func (o *RegisterOptions) Validate() error {
	// Names end up inside struct tags of generated parameter objects.
	if strings.ContainsRune(o.Name, '`') || strings.ContainsRune(o.Name, '"') {
		return fmt.Errorf("invalid Name(%q): names cannot contain quotes or backquotes", o.Name)
	}

	for _, t := range o.As {
		if t == nil {
			return fmt.Errorf("invalid As(nil): argument must be a pointer to an interface")
		}
		if t.Kind() != reflect.Interface {
			return fmt.Errorf("invalid As(*%v): argument must be a pointer to an interface", t)
		}
	}
	return nil
}

// Implements reports whether serviceType satisfies every As interface.
func (o *RegisterOptions) Implements(serviceType reflect.Type) error {
	for _, t := range o.As {
		if !serviceType.Implements(t) {
			return fmt.Errorf("%s does not implement %s", formatType(serviceType), formatType(t))
		}
	}
	return nil
}

// ApplyRegisterOptions parses and validates opts.
func ApplyRegisterOptions(opts ...RegisterOption) (*RegisterOptions, error) {
	options := &RegisterOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyRegisterOption(options)
		}
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// Name is a RegisterOption that registers the service under the given name.
//
//	c.Register(NewReadOnlyStore, servicebridge.Name("ro"))
//	c.Register(NewReadWriteStore, servicebridge.Name("rw"))
//
// Named services are resolved with GetInstance(t, name) and ResolveNamed.
func Name(name string) RegisterOption {
	return nameOption(name)
}

type nameOption string

func (o nameOption) String() string {
	return fmt.Sprintf("Name(%q)", string(o))
}

func (o nameOption) applyRegisterOption(opt *RegisterOptions) {
	opt.Name = string(o)
}

// As is a RegisterOption that provides the constructed value as one or more
// interfaces instead of its concrete type. It expects pointers to the
// interfaces:
//
//	c.Register(NewCalculator, servicebridge.As(new(Calculator)))
//
// Interception is decided per interface: each As type with a registered
// proxy factory gets its own proxy around the same instance.
func As(interfaces ...any) RegisterOption {
	types := make([]reflect.Type, len(interfaces))
	for i, iface := range interfaces {
		t := reflect.TypeOf(iface)
		if t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		types[i] = t
	}
	return asOption(types)
}

type asOption []reflect.Type

func (o asOption) String() string {
	names := make([]string, len(o))
	for i, t := range o {
		names[i] = formatType(t)
	}
	return fmt.Sprintf("As(%s)", strings.Join(names, ", "))
}

func (o asOption) applyRegisterOption(opt *RegisterOptions) {
	opt.As = append(opt.As, o...)
}
