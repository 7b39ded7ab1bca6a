// Package openapi describes service APIs as OpenAPI 3 documents and imports
// OpenAPI documents back into model declarations.
package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/utils"
)

// Version is the OpenAPI version of built documents.
const Version = "3.0.3"

const schemaRefPrefix = "#/components/schemas/"

var pathParamPattern = regexp.MustCompile(`\{([^}/]+)\}`)

// BuildDocument describes the public API of svc: one component schema per
// own or dependency typedef and one operation per function.
func BuildDocument(svc *ir.ServiceDecl) *openapi3.T {
	version := svc.Version
	if version == "" {
		version = "0.1.0"
	}
	doc := &openapi3.T{
		OpenAPI: Version,
		Info: &openapi3.Info{
			Title:       svc.Name,
			Description: svc.Description,
			Version:     version,
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}

	for _, td := range svc.AllTypedefs() {
		doc.Components.Schemas[td.Name] = typedefSchema(td).NewRef()
	}
	for _, fn := range svc.Functions() {
		doc.AddOperation(OperationPath(fn), operationMethod(fn), buildOperation(svc, fn))
	}
	return doc
}

// MarshalJSON encodes doc as indented JSON with a trailing newline.
// Map keys are sorted, so equal documents give equal bytes.
func MarshalJSON(doc *openapi3.T) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode OpenAPI document")
	}
	return append(data, '\n'), nil
}

// Validate checks doc against the OpenAPI 3 schema rules. Built documents hold
// unresolved component references, so doc is validated after an encode and
// reload round trip.
func Validate(ctx context.Context, doc *openapi3.T) error {
	data, err := MarshalJSON(doc)
	if err != nil {
		return err
	}
	loaded, err := LoadData(data)
	if err != nil {
		return err
	}
	return errors.Wrap(loaded.Validate(ctx), "invalid OpenAPI document")
}

// OperationPath is the route of fn, derived from its name when none is declared.
func OperationPath(fn *ir.Function) string {
	if fn.HTTPPath != "" {
		return fn.HTTPPath
	}
	return "/" + utils.ToKebabCase(fn.Name)
}

func operationMethod(fn *ir.Function) string {
	if fn.HTTPVerb == "" {
		return http.MethodGet
	}
	return strings.ToUpper(fn.HTTPVerb)
}

func buildOperation(svc *ir.ServiceDecl, fn *ir.Function) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = fn.Name
	op.Tags = []string{svc.Name}

	inPath := map[string]bool{}
	for _, m := range pathParamPattern.FindAllStringSubmatch(OperationPath(fn), -1) {
		inPath[m[1]] = true
	}
	for _, p := range fn.Params {
		var param *openapi3.Parameter
		if inPath[p.Name] {
			param = openapi3.NewPathParameter(p.Name)
		} else {
			param = openapi3.NewQueryParameter(p.Name).WithRequired(true)
		}
		param.Schema = SchemaFor(p.Type)
		op.AddParameter(param)
	}

	if fn.IsWrite() {
		body := openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchema(openapi3.NewObjectSchema().WithAnyAdditionalProperties())
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
	}

	resp := openapi3.NewResponse().WithDescription("Successful response")
	if ref := SchemaFor(fn.Returns); ref != nil {
		resp = resp.WithJSONSchemaRef(ref)
	}
	op.Responses = &openapi3.Responses{}
	op.Responses.Set("200", &openapi3.ResponseRef{Value: resp})
	return op
}

func typedefSchema(td *ir.TypeDef) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Properties = openapi3.Schemas{}
	for _, f := range td.Fields {
		if ref := SchemaFor(f.Type); ref != nil {
			s.Properties[f.Name] = ref
		}
	}
	if id := ir.IdentityField(td); s.Properties[id] != nil {
		s.Required = []string{id}
		s.Extensions = map[string]any{identityExtension: id}
	}
	return s
}

// SchemaFor returns the schema of a model type. Named types are references to
// component schemas; void and nil have no schema.
func SchemaFor(t ir.TypeRef) *openapi3.SchemaRef {
	switch v := t.(type) {
	case ir.Primitive:
		switch v.Name {
		case "int":
			return openapi3.NewInt64Schema().NewRef()
		case "float", "double":
			return openapi3.NewFloat64Schema().NewRef()
		case "str":
			return openapi3.NewStringSchema().NewRef()
		case "bool":
			return openapi3.NewBoolSchema().NewRef()
		case "date":
			return openapi3.NewDateTimeSchema().NewRef()
		case "list":
			return openapi3.NewArraySchema().WithItems(openapi3.NewSchema()).NewRef()
		case "set":
			return openapi3.NewArraySchema().WithItems(openapi3.NewSchema()).WithUniqueItems(true).NewRef()
		case "dict":
			return openapi3.NewObjectSchema().WithAnyAdditionalProperties().NewRef()
		case "void", "":
			return nil
		default:
			return openapi3.NewSchemaRef(schemaRefPrefix+utils.UpperFirst(v.Name), nil)
		}
	case *ir.TypeDef:
		if v == nil {
			return nil
		}
		return openapi3.NewSchemaRef(schemaRefPrefix+v.Name, nil)
	case ir.ListOf:
		s := openapi3.NewArraySchema()
		s.Items = itemsRef(v.Elem)
		return s.NewRef()
	case ir.SetOf:
		s := openapi3.NewArraySchema().WithUniqueItems(true)
		s.Items = itemsRef(v.Elem)
		return s.NewRef()
	case ir.MapOf:
		s := openapi3.NewObjectSchema()
		s.AdditionalProperties = openapi3.AdditionalProperties{Schema: itemsRef(v.Value)}
		return s.NewRef()
	default:
		return nil
	}
}

func itemsRef(t ir.TypeRef) *openapi3.SchemaRef {
	if ref := SchemaFor(t); ref != nil {
		return ref
	}
	return openapi3.NewSchema().NewRef()
}
