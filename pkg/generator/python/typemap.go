package python

import (
	"strings"

	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/utils"
)

// pyTypes maps model primitives to Python type names
var pyTypes = map[string]string{
	"date":   "date",
	"int":    "int",
	"float":  "float",
	"double": "float",
	"str":    "str",
	"bool":   "bool",
	"list":   "list",
	"set":    "set",
	"dict":   "dict",
	"void":   "None",
}

// pyDefaults maps model primitives to Python default expressions
var pyDefaults = map[string]string{
	"date":   "datetime.now()",
	"int":    "0",
	"float":  "0.0",
	"double": "0.0",
	"str":    `""`,
	"bool":   "False",
	"list":   "[]",
	"set":    "{}",
	"dict":   "{}",
	"void":   "",
}

// MapType returns the Python type name for t. Primitive names outside the
// table are taken as references to named types.
func MapType(t ir.TypeRef) string {
	switch v := t.(type) {
	case ir.Primitive:
		if py, ok := pyTypes[v.Name]; ok {
			return py
		}
		return utils.UpperFirst(v.Name)
	case *ir.TypeDef:
		if v == nil {
			return "None"
		}
		return utils.UpperFirst(v.Name)
	case ir.ListOf:
		return "List[" + MapType(v.Elem) + "]"
	case ir.SetOf:
		return "Set[" + MapType(v.Elem) + "]"
	case ir.MapOf:
		return "Dict[" + MapType(v.Key) + ", " + MapType(v.Value) + "]"
	default:
		return "None"
	}
}

// MapDefault returns the Python default-value expression for t.
func MapDefault(t ir.TypeRef) string {
	if p, ok := t.(ir.Primitive); ok {
		if d, ok := pyDefaults[p.Name]; ok {
			return d
		}
	}
	if t == nil {
		return ""
	}

	mapped := MapType(t)
	switch {
	case strings.HasPrefix(mapped, "List["):
		return "[]"
	case strings.HasPrefix(mapped, "Set["), strings.HasPrefix(mapped, "Dict["):
		return "{}"
	default:
		return mapped + "()"
	}
}
