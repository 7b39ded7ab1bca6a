package openapi

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/blimu-dev/svc-gen/pkg/ir"
)

// identityExtension marks the identity property of a component schema.
const identityExtension = "x-svcgen-identity"

// ImportService converts an OpenAPI document into a service declaration named
// name. Component schemas become typedefs and operations become functions.
// Operations are ordered by path, then method.
func ImportService(doc *openapi3.T, name string) (*ir.ServiceDecl, error) {
	if doc == nil {
		return nil, errors.New("nil OpenAPI document")
	}
	if name == "" && doc.Info != nil {
		name = doc.Info.Title
	}
	if name == "" {
		return nil, errors.New("service name is required when the document has no title")
	}

	c := &converter{typedefs: map[string]*ir.TypeDef{}}
	api := &ir.API{}

	var schemaNames []string
	if doc.Components != nil {
		for n := range doc.Components.Schemas {
			schemaNames = append(schemaNames, n)
		}
	}
	sort.Strings(schemaNames)
	// Register every typedef first so references resolve regardless of order.
	for _, n := range schemaNames {
		c.typedefs[n] = &ir.TypeDef{Name: n}
	}
	for _, n := range schemaNames {
		td := c.typedefs[n]
		c.fillTypedef(td, doc.Components.Schemas[n])
		api.Typedefs = append(api.Typedefs, td)
	}

	if doc.Paths != nil {
		paths := make([]string, 0, doc.Paths.Len())
		for p := range doc.Paths.Map() {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			item := doc.Paths.Value(p)
			ops := item.Operations()
			methods := make([]string, 0, len(ops))
			for m := range ops {
				methods = append(methods, m)
			}
			sort.Strings(methods)
			for _, m := range methods {
				api.Functions = append(api.Functions, c.function(p, m, item, ops[m]))
			}
		}
	}

	svc := &ir.ServiceDecl{Name: name, API: api}
	if doc.Info != nil {
		svc.Version = doc.Info.Version
		svc.Description = doc.Info.Description
	}
	return svc, nil
}

type converter struct {
	typedefs map[string]*ir.TypeDef
}

func (c *converter) fillTypedef(td *ir.TypeDef, sr *openapi3.SchemaRef) {
	if sr == nil || sr.Value == nil {
		return
	}
	s := sr.Value
	identity, _ := s.Extensions[identityExtension].(string)

	props := make([]string, 0, len(s.Properties))
	for p := range s.Properties {
		props = append(props, p)
	}
	sort.Strings(props)
	for _, p := range props {
		td.Fields = append(td.Fields, &ir.Field{
			Name: p,
			Type: c.typeRef(s.Properties[p]),
			IsID: p == identity,
		})
	}
}

func (c *converter) function(path, method string, item *openapi3.PathItem, op *openapi3.Operation) *ir.Function {
	fn := &ir.Function{
		Name:     op.OperationID,
		HTTPVerb: strings.ToUpper(method),
		HTTPPath: path,
	}
	if fn.Name == "" {
		fn.Name = deriveFunctionName(method, path)
	}

	params := append(openapi3.Parameters{}, item.Parameters...)
	params = append(params, op.Parameters...)
	for _, pr := range params {
		if pr == nil || pr.Value == nil {
			continue
		}
		if pr.Value.In != openapi3.ParameterInPath && pr.Value.In != openapi3.ParameterInQuery {
			continue
		}
		fn.Params = append(fn.Params, &ir.Param{Name: pr.Value.Name, Type: c.typeRef(pr.Value.Schema)})
	}

	if op.Responses != nil {
		for _, code := range []string{"200", "201"} {
			resp := op.Responses.Value(code)
			if resp == nil || resp.Value == nil {
				continue
			}
			if mt := resp.Value.Content.Get("application/json"); mt != nil && mt.Schema != nil {
				fn.Returns = c.typeRef(mt.Schema)
				break
			}
		}
	}
	if fn.Returns == nil {
		fn.Returns = ir.Prim("void")
	}
	return fn
}

// typeRef converts an OpenAPI schema to a model type
func (c *converter) typeRef(sr *openapi3.SchemaRef) ir.TypeRef {
	if sr == nil {
		return ir.Prim("dict")
	}
	if sr.Ref != "" {
		parts := strings.Split(sr.Ref, "/")
		name := parts[len(parts)-1]
		if td, ok := c.typedefs[name]; ok {
			return td
		}
		return ir.Named(name)
	}
	s := sr.Value
	if s == nil || s.Type == nil {
		return ir.Prim("dict")
	}

	switch {
	case s.Type.Is(openapi3.TypeInteger):
		return ir.Prim("int")
	case s.Type.Is(openapi3.TypeNumber):
		return ir.Prim("float")
	case s.Type.Is(openapi3.TypeBoolean):
		return ir.Prim("bool")
	case s.Type.Is(openapi3.TypeString):
		if s.Format == "date" || s.Format == "date-time" {
			return ir.Prim("date")
		}
		return ir.Prim("str")
	case s.Type.Is(openapi3.TypeArray):
		if s.Items == nil {
			if s.UniqueItems {
				return ir.Prim("set")
			}
			return ir.Prim("list")
		}
		if s.UniqueItems {
			return ir.SetOf{Elem: c.typeRef(s.Items)}
		}
		return ir.ListOf{Elem: c.typeRef(s.Items)}
	case s.Type.Is(openapi3.TypeObject):
		if ap := s.AdditionalProperties.Schema; ap != nil {
			return ir.MapOf{Key: ir.Prim("str"), Value: c.typeRef(ap)}
		}
		return ir.Prim("dict")
	default:
		return ir.Prim("dict")
	}
}

// deriveFunctionName builds a function name when an operation has no operationId:
// GET /orders/{id} -> getOrdersId
func deriveFunctionName(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(path, "/") {
		seg = strings.Trim(seg, "{}")
		if seg == "" {
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	return b.String()
}
