package codec

import (
	"fmt"
	"reflect"
	"sync"
)

// Struct values carried in dynamic fields travel under a stable wire name. When the
// receiver decodes such a value into an interface destination it needs the name → type
// mapping; RegisterType establishes it. Both ends must register the same name for the
// same shape, in the spirit of encoding/gob.Register.
var (
	typesByName sync.Map // string → reflect.Type
	namesByType sync.Map // reflect.Type → string
)

// RegisterType maps a wire name to the concrete type of v (a struct or pointer to
// struct). Registering two different types under one name is a programming error.
func RegisterType(name string, v any) {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("codec: RegisterType needs a struct, got %s", t.Kind()))
	}
	if prev, loaded := typesByName.LoadOrStore(name, t); loaded && prev.(reflect.Type) != t {
		panic(fmt.Sprintf("codec: type name %q already registered to %s", name, prev.(reflect.Type)))
	}
	namesByType.Store(t, name)
}

// TypeNameOf returns the stable identifier used for v in a request's parameter type
// list: the registered wire name when v's type has one, the reflect type string
// otherwise. A nil argument is identified as "nil".
func TypeNameOf(v any) string {
	if v == nil {
		return "nil"
	}
	return nameOfType(reflect.TypeOf(v))
}

func nameOfType(t reflect.Type) string {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if name, ok := namesByType.Load(base); ok {
		return name.(string)
	}
	return t.String()
}
