package ir

// DeclKind names a declaration variant
type DeclKind string

const (
	KindService         DeclKind = "service"
	KindServiceRegistry DeclKind = "registry"
	KindAPIGateway      DeclKind = "gateway"
	KindConfigServer    DeclKind = "config-server"
)

// Decl is one top-level unit of the model.
// The set of implementations is closed; generators consume it through DeclVisitor.
type Decl interface {
	DeclName() string
	Kind() DeclKind
	Accept(v DeclVisitor) error
}

// DeclVisitor has one method per declaration variant. Adding a variant adds a
// method here, which every visitor must then implement.
type DeclVisitor interface {
	VisitService(*ServiceDecl) error
	VisitServiceRegistry(*ServiceRegistryDecl) error
	VisitAPIGateway(*APIGateway) error
	VisitConfigServer(*ConfigServerDecl) error
}

// ServiceDecl describes a deployable service
type ServiceDecl struct {
	Name         string
	Version      string
	Description  string
	Host         string
	Port         int
	API          *API
	Dependencies []*Dependency
	Deployment   *Deployment

	// Model is the parent model, used for the shared message pool.
	Model *Model
}

func (s *ServiceDecl) DeclName() string { return s.Name }
func (s *ServiceDecl) Kind() DeclKind { return KindService }
func (s *ServiceDecl) Accept(v DeclVisitor) error { return v.VisitService(s) }

func (r *ServiceRegistryDecl) DeclName() string { return r.Name }
func (r *ServiceRegistryDecl) Kind() DeclKind { return KindServiceRegistry }
func (r *ServiceRegistryDecl) Accept(v DeclVisitor) error { return v.VisitServiceRegistry(r) }

func (g *APIGateway) DeclName() string { return g.Name }
func (g *APIGateway) Kind() DeclKind { return KindAPIGateway }
func (g *APIGateway) Accept(v DeclVisitor) error { return v.VisitAPIGateway(g) }

func (c *ConfigServerDecl) DeclName() string { return c.Name }
func (c *ConfigServerDecl) Kind() DeclKind { return KindConfigServer }
func (c *ConfigServerDecl) Accept(v DeclVisitor) error { return v.VisitConfigServer(c) }

// Typedefs returns the service's own API types.
func (s *ServiceDecl) Typedefs() []*TypeDef {
	if s.API == nil {
		return nil
	}
	return s.API.Typedefs
}

// Functions returns the service's public API operations.
func (s *ServiceDecl) Functions() []*Function {
	if s.API == nil {
		return nil
	}
	return s.API.Functions
}

// DepTypedefs flattens the typedefs of all dependencies, dropping repeated names
// and names already declared by the service itself.
func (s *ServiceDecl) DepTypedefs() []*TypeDef {
	seen := map[string]bool{}
	for _, td := range s.Typedefs() {
		seen[td.Name] = true
	}
	var out []*TypeDef
	for _, d := range s.Dependencies {
		for _, td := range d.Typedefs {
			if seen[td.Name] {
				continue
			}
			seen[td.Name] = true
			out = append(out, td)
		}
	}
	return out
}

// AllTypedefs returns own typedefs followed by dependency typedefs.
func (s *ServiceDecl) AllTypedefs() []*TypeDef {
	own := s.Typedefs()
	out := make([]*TypeDef, 0, len(own))
	out = append(out, own...)
	return append(out, s.DepTypedefs()...)
}

// DepFunctions flattens the functions of all dependencies, dropping repeats.
func (s *ServiceDecl) DepFunctions() []*Function {
	seen := map[string]bool{}
	var out []*Function
	for _, d := range s.Dependencies {
		for _, f := range d.Functions {
			key := d.Service + "." + f.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, f)
		}
	}
	return out
}

// Messages returns the parent model's message pool.
func (s *ServiceDecl) Messages() []*Message {
	if s.Model == nil {
		return nil
	}
	return s.Model.Messages
}

// ServiceRegistryDecl declares a service registry
type ServiceRegistryDecl struct {
	Name       string
	Port       int
	ClientMode bool
}

// Route maps a path prefix on the gateway to an upstream service
type Route struct {
	Service string
	Port    int
	Path    string
}

// APIGateway declares a reverse proxy in front of services.
// Port is zero when not configured.
type APIGateway struct {
	Name   string
	Port   int
	Routes []Route
}

// ConfigServerDecl declares a configuration server
type ConfigServerDecl struct {
	Name string
	Port int
}

// IsNil reports whether d is nil or a nil pointer of one of the declaration kinds.
func IsNil(d Decl) bool {
	switch v := d.(type) {
	case nil:
		return true
	case *ServiceDecl:
		return v == nil
	case *ServiceRegistryDecl:
		return v == nil
	case *APIGateway:
		return v == nil
	case *ConfigServerDecl:
		return v == nil
	}
	return false
}
