package servicebridge

import (
	"fmt"
	"reflect"
	"strings"
)

// InjectFields fills the exported fields of the struct target points to that
// carry an `inject` tag, resolving each from c by field type:
//
//	type AuditInterceptor struct {
//	    Log    logr.Logger `inject:""`
//	    Store  AuditStore  `inject:"primary"`
//	    Clock  Clock       `inject:",optional"`
//	}
//
// The tag value is the registration name, optionally followed by ",optional"
// to ignore services that are not registered. Fields that already hold a
// non-zero value are left alone. Targets that are not struct pointers are
// ignored.
func InjectFields(target any, c ServiceContainer) error {
	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	elem := v.Elem()
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup("inject")
		if !ok || !field.IsExported() {
			continue
		}

		fv := elem.Field(i)
		if !fv.IsZero() {
			continue
		}

		if c == nil {
			return ErrContainerNil
		}

		name, optional := parseInjectTag(tag)
		instance, err := c.GetInstance(field.Type, name)
		if err != nil {
			if optional && IsNotFound(err) {
				continue
			}
			return &ResolutionError{ServiceType: field.Type, Name: name, Cause: err}
		}
		if instance == nil {
			continue
		}

		iv := reflect.ValueOf(instance)
		if !iv.Type().AssignableTo(field.Type) {
			return fmt.Errorf("field %s.%s: %s is not assignable to %s",
				formatType(t), field.Name, formatType(iv.Type()), formatType(field.Type))
		}
		fv.Set(iv)
	}

	return nil
}

func parseInjectTag(tag string) (name string, optional bool) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		if strings.TrimSpace(p) == "optional" {
			optional = true
		}
	}
	return name, optional
}
