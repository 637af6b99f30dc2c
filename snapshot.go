package silo

import (
	"reflect"
	"strings"

	"github.com/fatih/structs"
)

// Snapshot renders an entity's current component values into a plain map
// keyed by component type name, for logging, debugging and inspection
// tools that shouldn't need compile-time knowledge of component types.
// Struct-valued components are expanded field-by-field via fatih/structs;
// anything else is stored as-is.
func Snapshot(e Entity) map[string]any {
	out := make(map[string]any, len(e.Components()))
	rows := e.Table().Rows()
	idx := e.Index()

	for _, row := range rows {
		val := reflect.Value(row).Index(idx).Interface()
		name := typeName(val)
		if structs.IsStruct(val) {
			out[name] = structs.Map(val)
			continue
		}
		out[name] = val
	}
	return out
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.String()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
