package python

import (
	"sort"
	"strings"
	"text/template"

	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/utils"
)

// generatedHeader is the docstring placed at the top of every Python artifact.
// It carries no timestamp so that regenerating leaves files byte-identical.
const generatedHeader = "Generated by svc-gen. DO NOT EDIT."

// funcMap returns the template functions for Python artifacts. None of them
// capture state; everything service specific travels in the render context.
func funcMap() template.FuncMap {
	return template.FuncMap{
		"upper_case":    utils.UpperFirst,
		"lower_case":    utils.LowerFirst,
		"all_lower":     strings.ToLower,
		"snake":         utils.ToSnakeCase,
		"pascal":        utils.ToPascalCase,
		"kebab":         utils.ToKebabCase,
		"py_type":       MapType,
		"py_default":    MapDefault,
		"py_return":     returnType,
		"get_params":    getParams,
		"method_params": methodParams,
		"call_args":     callArgs,
		"id_field":      ir.IdentityField,
		"http_method":   httpMethod,
		"http_path":     httpPath,
		"path_template": pathTemplate,
		"imports":       typedefImports,
		"docstring":     formatDocstring,
		"header":        func() string { return generatedHeader },
	}
}

// getParams renders the parameter list of fn. Write verbs get a trailing
// untyped payload parameter.
func getParams(fn *ir.Function) string {
	parts := make([]string, 0, len(fn.Params)+1)
	for _, p := range fn.Params {
		parts = append(parts, p.Name+": "+MapType(p.Type))
	}
	if fn.IsWrite() {
		parts = append(parts, "dto: dict")
	}
	return strings.Join(parts, ", ")
}

// methodParams is getParams for a method, with self first
func methodParams(fn *ir.Function) string {
	if params := getParams(fn); params != "" {
		return "self, " + params
	}
	return "self"
}

// callArgs renders the keyword arguments forwarding fn's parameters
func callArgs(fn *ir.Function) string {
	parts := make([]string, 0, len(fn.Params)+1)
	for _, p := range fn.Params {
		parts = append(parts, p.Name+"="+p.Name)
	}
	if fn.IsWrite() {
		parts = append(parts, "dto=dto")
	}
	return strings.Join(parts, ", ")
}

func returnType(fn *ir.Function) string {
	if fn.Returns == nil {
		return "None"
	}
	return MapType(fn.Returns)
}

// httpMethod returns the lower-case verb used by FastAPI and requests
func httpMethod(fn *ir.Function) string {
	if fn.HTTPVerb == "" {
		return "get"
	}
	return strings.ToLower(fn.HTTPVerb)
}

// httpPath returns the route of fn, derived from its name when none is declared
func httpPath(fn *ir.Function) string {
	if fn.HTTPPath != "" {
		return fn.HTTPPath
	}
	return "/" + utils.ToKebabCase(fn.Name)
}

// pathTemplate converts a route to a Python f-string: /orders/{id} -> f"/orders/{id}"
func pathTemplate(fn *ir.Function) string {
	return `f"` + httpPath(fn) + `"`
}

// typedefImports returns the sorted names of the typedefs referenced by fns,
// for "from models.x import X" lines.
func typedefImports(fns []*ir.Function) []string {
	var types []ir.TypeRef
	for _, fn := range fns {
		for _, p := range fn.Params {
			types = append(types, p.Type)
		}
		types = append(types, fn.Returns)
	}
	return referencedNames(types)
}

func referencedNames(types []ir.TypeRef) []string {
	seen := map[string]bool{}
	for _, t := range types {
		for _, td := range ir.ReferencedTypedefs(t) {
			seen[td.Name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// formatDocstring formats a string for use in Python docstrings
func formatDocstring(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `"""`, `\"\"\"`)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
