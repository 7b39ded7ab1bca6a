// Package loader reads model documents and builds the in-memory model the
// generators consume.
//
// A document lists messages, channels and declarations:
//
//	name: shop
//	channels:
//	  - {name: orders.created, message: OrderCreated}
//	services:
//	  - name: Orders
//	    typedefs:
//	      - name: Order
//	        fields:
//	          - {name: id, type: int, id: true}
//	          - {name: lines, type: "list<Line>"}
//	    functions:
//	      - {name: createOrder, method: POST, params: [{name: total, type: float}], returns: Order}
//	gateways:
//	  - name: edge
//	    routes: [{service: Orders, path: /orders/}]
//
// YAML, JSON and TOML documents share the same schema.
package loader

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a model document
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatOf guesses the format of path from its extension. Unknown extensions
// are read as YAML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Document is the root of a model document
type Document struct {
	Name          string            `yaml:"name" toml:"name"`
	Messages      []MessageDoc      `yaml:"messages" toml:"messages" validate:"dive"`
	Channels      []ChannelDoc      `yaml:"channels" toml:"channels" validate:"dive"`
	Services      []ServiceDoc      `yaml:"services" toml:"services" validate:"dive"`
	Registries    []RegistryDoc     `yaml:"registries" toml:"registries" validate:"dive"`
	Gateways      []GatewayDoc      `yaml:"gateways" toml:"gateways" validate:"dive"`
	ConfigServers []ConfigServerDoc `yaml:"configServers" toml:"configServers" validate:"dive"`
}

type FieldDoc struct {
	Name string `yaml:"name" toml:"name" validate:"required"`
	Type string `yaml:"type" toml:"type" validate:"required"`
	ID   bool   `yaml:"id" toml:"id"`
}

type MessageDoc struct {
	Name   string     `yaml:"name" toml:"name" validate:"required"`
	Fields []FieldDoc `yaml:"fields" toml:"fields" validate:"dive"`
}

type ChannelDoc struct {
	Name    string `yaml:"name" toml:"name" validate:"required"`
	Message string `yaml:"message" toml:"message"`
}

type TypedefDoc struct {
	Name   string     `yaml:"name" toml:"name" validate:"required"`
	Fields []FieldDoc `yaml:"fields" toml:"fields" validate:"dive"`
}

type ParamDoc struct {
	Name string `yaml:"name" toml:"name" validate:"required"`
	Type string `yaml:"type" toml:"type" validate:"required"`
}

// FunctionDoc describes an operation. Consumes and Produces name channels.
type FunctionDoc struct {
	Name     string     `yaml:"name" toml:"name" validate:"required"`
	Params   []ParamDoc `yaml:"params" toml:"params" validate:"dive"`
	Returns  string     `yaml:"returns" toml:"returns"`
	Method   string     `yaml:"method" toml:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE get post put patch delete"`
	Path     string     `yaml:"path" toml:"path" validate:"omitempty,startswith=/"`
	Consumes []string   `yaml:"consumes" toml:"consumes"`
	Produces []string   `yaml:"produces" toml:"produces"`
}

// DependencyDoc selects what a service uses from another one. Empty lists
// select everything the other service declares.
type DependencyDoc struct {
	Service   string   `yaml:"service" toml:"service" validate:"required"`
	Functions []string `yaml:"functions" toml:"functions"`
	Typedefs  []string `yaml:"typedefs" toml:"typedefs"`
}

type DeploymentDoc struct {
	Version  string `yaml:"version" toml:"version"`
	URL      string `yaml:"url" toml:"url" validate:"omitempty,url"`
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	Replicas int    `yaml:"replicas" toml:"replicas" validate:"gte=0"`
}

type ServiceDoc struct {
	Name        string `yaml:"name" toml:"name" validate:"required"`
	Version     string `yaml:"version" toml:"version"`
	Description string `yaml:"description" toml:"description"`
	Host        string `yaml:"host" toml:"host"`
	Port        int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	// OpenAPI is an OpenAPI document, relative to the model document, whose
	// schemas and operations are imported before Typedefs and Functions.
	OpenAPI    string          `yaml:"openapi" toml:"openapi"`
	Typedefs   []TypedefDoc    `yaml:"typedefs" toml:"typedefs" validate:"dive"`
	Functions  []FunctionDoc   `yaml:"functions" toml:"functions" validate:"dive"`
	Internal   []FunctionDoc   `yaml:"internal" toml:"internal" validate:"dive"`
	Uses       []DependencyDoc `yaml:"uses" toml:"uses" validate:"dive"`
	Deployment *DeploymentDoc  `yaml:"deployment" toml:"deployment"`
}

type RegistryDoc struct {
	Name       string `yaml:"name" toml:"name" validate:"required"`
	Port       int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	ClientMode bool   `yaml:"clientMode" toml:"clientMode"`
}

type RouteDoc struct {
	Service string `yaml:"service" toml:"service" validate:"required"`
	Port    int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	Path    string `yaml:"path" toml:"path" validate:"omitempty,startswith=/"`
}

type GatewayDoc struct {
	Name   string     `yaml:"name" toml:"name" validate:"required"`
	Port   int        `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	Routes []RouteDoc `yaml:"routes" toml:"routes" validate:"dive"`
}

type ConfigServerDoc struct {
	Name string `yaml:"name" toml:"name" validate:"required"`
	Port int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
}

var validate = validator.New()

// Decode parses a document. Unknown keys are errors.
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "failed to parse TOML model")
		}
	case FormatYAML, FormatJSON:
		// JSON documents are valid YAML
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "failed to parse %s model", strings.ToUpper(string(format)))
		}
	default:
		return nil, errors.Newf("unsupported model format %q", format)
	}

	if err := validate.Struct(&doc); err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "invalid model document"),
			"every message, field, typedef, function and declaration needs a name")
	}
	return &doc, nil
}
