package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/blimu-dev/svc-gen/pkg/generator/python"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/openapi"
)

// Load reads the model document at path. The format follows the extension.
func Load(path string) (*ir.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model %s", path)
	}
	model, err := LoadBytes(data, FormatOf(path), filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", path)
	}
	return model, nil
}

// LoadBytes builds a model from an encoded document. Relative OpenAPI
// references resolve against baseDir.
func LoadBytes(data []byte, format Format, baseDir string) (*ir.Model, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return Build(doc, baseDir)
}

// Build resolves every name of doc and returns the model. Declarations keep
// document order within their kind: services, registries, gateways, then
// config servers.
func Build(doc *Document, baseDir string) (*ir.Model, error) {
	b := &builder{
		doc:      doc,
		baseDir:  baseDir,
		model:    &ir.Model{Name: doc.Name},
		messages: map[string]*ir.Message{},
		channels: map[string]*ir.Channel{},
		services: map[string]*serviceState{},
		names:    map[string]ir.DeclKind{},
	}
	steps := []func() error{
		b.buildMessages,
		b.buildChannels,
		b.declareServices,
		b.checkUses,
		b.buildTypedefs,
		b.buildFunctions,
		b.buildDependencies,
		b.buildRegistries,
		b.buildGateways,
		b.buildConfigServers,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.model, nil
}

type serviceState struct {
	doc       *ServiceDoc
	decl      *ir.ServiceDecl
	typedefs  map[string]*ir.TypeDef
	functions map[string]*ir.Function
}

type builder struct {
	doc     *Document
	baseDir string
	model   *ir.Model

	messages map[string]*ir.Message
	channels map[string]*ir.Channel
	services map[string]*serviceState
	order    []*serviceState
	names    map[string]ir.DeclKind
}

// claim reserves a declaration name; names are unique across kinds.
func (b *builder) claim(name string, kind ir.DeclKind) error {
	if prev, ok := b.names[name]; ok {
		return errors.Newf("duplicate declaration %s (%s and %s)", name, prev, kind)
	}
	b.names[name] = kind
	return nil
}

func checkVersion(v string) error {
	if v == "" {
		return nil
	}
	if _, err := semver.NewVersion(v); err != nil {
		return errors.Wrapf(err, "version %q", v)
	}
	return nil
}

func (b *builder) buildMessages() error {
	for _, md := range b.doc.Messages {
		if _, ok := b.messages[md.Name]; ok {
			return errors.Newf("duplicate message %s", md.Name)
		}
		msg := &ir.Message{Name: md.Name}
		fields, err := buildFields(md.Fields, nil)
		if err != nil {
			return errors.Wrapf(err, "message %s", md.Name)
		}
		msg.Fields = fields
		b.messages[md.Name] = msg
		b.model.Messages = append(b.model.Messages, msg)
	}
	return nil
}

func (b *builder) buildChannels() error {
	for _, cd := range b.doc.Channels {
		if _, ok := b.channels[cd.Name]; ok {
			return errors.Newf("duplicate channel %s", cd.Name)
		}
		ch := &ir.Channel{Name: cd.Name}
		if cd.Message != "" {
			msg, ok := b.messages[cd.Message]
			if !ok {
				return errors.Newf("channel %s: unknown message %s", cd.Name, cd.Message)
			}
			ch.Message = msg
		}
		b.channels[cd.Name] = ch
		b.model.Channels = append(b.model.Channels, ch)
	}
	return nil
}

func (b *builder) channel(name string) (*ir.Channel, error) {
	ch, ok := b.channels[name]
	if !ok {
		return nil, errors.WithHint(errors.Newf("unknown channel %s", name),
			"declare it in the channels section")
	}
	return ch, nil
}

// declareServices creates every service and its typedefs without fields, so
// that later steps can refer to any of them.
func (b *builder) declareServices() error {
	for i := range b.doc.Services {
		sd := &b.doc.Services[i]
		if err := b.claim(sd.Name, ir.KindService); err != nil {
			return err
		}
		if err := checkVersion(sd.Version); err != nil {
			return errors.Wrapf(err, "service %s", sd.Name)
		}

		decl := &ir.ServiceDecl{
			Name:        sd.Name,
			Version:     sd.Version,
			Description: sd.Description,
			Host:        sd.Host,
			Port:        sd.Port,
			API:         &ir.API{},
			Model:       b.model,
		}
		if d := sd.Deployment; d != nil {
			if err := checkVersion(d.Version); err != nil {
				return errors.Wrapf(err, "service %s: deployment", sd.Name)
			}
			decl.Deployment = &ir.Deployment{
				Version:  d.Version,
				URL:      d.URL,
				Host:     d.Host,
				Port:     d.Port,
				Replicas: d.Replicas,
			}
		}
		st := &serviceState{
			doc:       sd,
			decl:      decl,
			typedefs:  map[string]*ir.TypeDef{},
			functions: map[string]*ir.Function{},
		}

		if sd.OpenAPI != "" {
			if err := b.importOpenAPI(st); err != nil {
				return errors.Wrapf(err, "service %s", sd.Name)
			}
		}
		for _, td := range sd.Typedefs {
			if _, ok := st.typedefs[td.Name]; ok {
				return errors.Newf("service %s: duplicate typedef %s", sd.Name, td.Name)
			}
			t := &ir.TypeDef{Name: td.Name}
			st.typedefs[td.Name] = t
			decl.API.Typedefs = append(decl.API.Typedefs, t)
		}
		for _, t := range decl.API.Typedefs {
			if python.ReservedTypedefName(t.Name) {
				return errors.WithHint(errors.Newf("service %s: typedef name %s is reserved", sd.Name, t.Name),
					"api/functions.py holds the service operations; rename the typedef")
			}
		}

		b.services[sd.Name] = st
		b.order = append(b.order, st)
		b.model.Decls = append(b.model.Decls, decl)
	}
	return nil
}

func (b *builder) importOpenAPI(st *serviceState) error {
	path := st.doc.OpenAPI
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.baseDir, path)
	}
	doc, err := openapi.LoadDocument(path)
	if err != nil {
		return err
	}
	imported, err := openapi.ImportService(doc, st.decl.Name)
	if err != nil {
		return err
	}
	if st.decl.Version == "" {
		st.decl.Version = imported.Version
	}
	if st.decl.Description == "" {
		st.decl.Description = imported.Description
	}
	for _, td := range imported.Typedefs() {
		st.typedefs[td.Name] = td
		st.decl.API.Typedefs = append(st.decl.API.Typedefs, td)
	}
	for _, fn := range imported.Functions() {
		st.functions[fn.Name] = fn
		st.decl.API.Functions = append(st.decl.API.Functions, fn)
	}
	return nil
}

func (b *builder) checkUses() error {
	for _, st := range b.order {
		for _, u := range st.doc.Uses {
			if u.Service == st.decl.Name {
				return errors.Newf("service %s uses itself", u.Service)
			}
			if _, ok := b.services[u.Service]; !ok {
				return errors.Newf("service %s: uses unknown service %s", st.decl.Name, u.Service)
			}
		}
	}
	return nil
}

// resolver looks names up in the service's own typedefs, then in the
// typedefs of the services it uses.
func (b *builder) resolver(st *serviceState) Resolver {
	return func(name string) (ir.TypeRef, bool) {
		if td, ok := st.typedefs[name]; ok {
			return td, true
		}
		for _, u := range st.doc.Uses {
			if td, ok := b.services[u.Service].typedefs[name]; ok {
				return td, true
			}
		}
		return nil, false
	}
}

func (b *builder) buildTypedefs() error {
	for _, st := range b.order {
		resolve := b.resolver(st)
		for _, td := range st.doc.Typedefs {
			fields, err := buildFields(td.Fields, resolve)
			if err != nil {
				return errors.Wrapf(err, "service %s: typedef %s", st.decl.Name, td.Name)
			}
			st.typedefs[td.Name].Fields = fields
		}
	}
	return nil
}

func buildFields(docs []FieldDoc, resolve Resolver) ([]*ir.Field, error) {
	fields := make([]*ir.Field, 0, len(docs))
	seen := map[string]bool{}
	for _, fd := range docs {
		if seen[fd.Name] {
			return nil, errors.Newf("duplicate field %s", fd.Name)
		}
		seen[fd.Name] = true
		t, err := ParseType(fd.Type, resolve)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", fd.Name)
		}
		fields = append(fields, &ir.Field{Name: fd.Name, Type: t, IsID: fd.ID})
	}
	return fields, nil
}

func (b *builder) buildFunctions() error {
	for _, st := range b.order {
		resolve := b.resolver(st)
		api := st.decl.API
		for i := range st.doc.Functions {
			fd := &st.doc.Functions[i]
			if _, ok := st.functions[fd.Name]; ok {
				return errors.Newf("service %s: duplicate function %s", st.decl.Name, fd.Name)
			}
			fn, err := b.buildFunction(fd, resolve)
			if err != nil {
				return errors.Wrapf(err, "service %s: function %s", st.decl.Name, fd.Name)
			}
			st.functions[fd.Name] = fn
			api.Functions = append(api.Functions, fn)
		}

		// A document without an internal section keeps Internal nil.
		if st.doc.Internal == nil {
			continue
		}
		api.Internal = make([]*ir.Function, 0, len(st.doc.Internal))
		seen := map[string]bool{}
		for i := range st.doc.Internal {
			fd := &st.doc.Internal[i]
			if seen[fd.Name] {
				return errors.Newf("service %s: duplicate internal function %s", st.decl.Name, fd.Name)
			}
			seen[fd.Name] = true
			fn, err := b.buildFunction(fd, resolve)
			if err != nil {
				return errors.Wrapf(err, "service %s: internal function %s", st.decl.Name, fd.Name)
			}
			api.Internal = append(api.Internal, fn)
		}
	}
	return nil
}

func (b *builder) buildFunction(fd *FunctionDoc, resolve Resolver) (*ir.Function, error) {
	fn := &ir.Function{
		Name:     fd.Name,
		HTTPVerb: strings.ToUpper(fd.Method),
		HTTPPath: fd.Path,
		Returns:  ir.Prim("void"),
	}
	for _, pd := range fd.Params {
		t, err := ParseType(pd.Type, resolve)
		if err != nil {
			return nil, errors.Wrapf(err, "param %s", pd.Name)
		}
		fn.Params = append(fn.Params, &ir.Param{Name: pd.Name, Type: t})
	}
	if fd.Returns != "" {
		t, err := ParseType(fd.Returns, resolve)
		if err != nil {
			return nil, errors.Wrap(err, "returns")
		}
		fn.Returns = t
	}

	if len(fd.Consumes) > 0 {
		consumer := &ir.ConsumerAnnotation{}
		for _, name := range fd.Consumes {
			ch, err := b.channel(name)
			if err != nil {
				return nil, err
			}
			consumer.Subscriptions = append(consumer.Subscriptions, &ir.Subscription{Channel: ch})
		}
		fn.Annotations = append(fn.Annotations, consumer)
	}
	if len(fd.Produces) > 0 {
		producer := &ir.ProducerAnnotation{}
		for _, name := range fd.Produces {
			ch, err := b.channel(name)
			if err != nil {
				return nil, err
			}
			producer.Channels = append(producer.Channels, ch)
		}
		fn.Annotations = append(fn.Annotations, producer)
	}
	return fn, nil
}

func (b *builder) buildDependencies() error {
	for _, st := range b.order {
		for _, u := range st.doc.Uses {
			target := b.services[u.Service]
			dep := &ir.Dependency{Service: u.Service}

			if len(u.Typedefs) == 0 {
				dep.Typedefs = target.decl.Typedefs()
			}
			for _, name := range u.Typedefs {
				td, ok := target.typedefs[name]
				if !ok {
					return errors.Newf("service %s: %s has no typedef %s", st.decl.Name, u.Service, name)
				}
				dep.Typedefs = append(dep.Typedefs, td)
			}

			if len(u.Functions) == 0 {
				dep.Functions = target.decl.Functions()
			}
			for _, name := range u.Functions {
				fn, ok := target.functions[name]
				if !ok {
					return errors.Newf("service %s: %s has no function %s", st.decl.Name, u.Service, name)
				}
				dep.Functions = append(dep.Functions, fn)
			}
			st.decl.Dependencies = append(st.decl.Dependencies, dep)
		}
	}
	return nil
}

func (b *builder) buildRegistries() error {
	for _, rd := range b.doc.Registries {
		if err := b.claim(rd.Name, ir.KindServiceRegistry); err != nil {
			return err
		}
		b.model.Decls = append(b.model.Decls, &ir.ServiceRegistryDecl{
			Name:       rd.Name,
			Port:       rd.Port,
			ClientMode: rd.ClientMode,
		})
	}
	return nil
}

// buildGateways resolves routes. A route without a port targets the port of
// its service, when the service declares one.
func (b *builder) buildGateways() error {
	for _, gd := range b.doc.Gateways {
		if err := b.claim(gd.Name, ir.KindAPIGateway); err != nil {
			return err
		}
		gw := &ir.APIGateway{Name: gd.Name, Port: gd.Port}
		for _, rd := range gd.Routes {
			st, ok := b.services[rd.Service]
			if !ok {
				return errors.Newf("gateway %s: route to unknown service %s", gd.Name, rd.Service)
			}
			route := ir.Route{Service: rd.Service, Port: rd.Port, Path: rd.Path}
			if route.Port == 0 {
				route.Port = servicePort(st.decl)
			}
			gw.Routes = append(gw.Routes, route)
		}
		b.model.Decls = append(b.model.Decls, gw)
	}
	return nil
}

func servicePort(svc *ir.ServiceDecl) int {
	if svc.Port != 0 {
		return svc.Port
	}
	if svc.Deployment != nil {
		return svc.Deployment.Port
	}
	return 0
}

func (b *builder) buildConfigServers() error {
	for _, cd := range b.doc.ConfigServers {
		if err := b.claim(cd.Name, ir.KindConfigServer); err != nil {
			return err
		}
		b.model.Decls = append(b.model.Decls, &ir.ConfigServerDecl{Name: cd.Name, Port: cd.Port})
	}
	return nil
}
