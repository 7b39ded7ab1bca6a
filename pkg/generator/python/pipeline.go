package python

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/config"
	"github.com/blimu-dev/svc-gen/pkg/format"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/messaging"
	"github.com/blimu-dev/svc-gen/pkg/openapi"
	"github.com/blimu-dev/svc-gen/pkg/pipeline"
	"github.com/blimu-dev/svc-gen/pkg/render"
	"github.com/blimu-dev/svc-gen/pkg/utils"
)

// Stage names, in execution order
const (
	StageModels         = "models"
	StageAPI            = "api"
	StageMessaging      = "messaging"
	StageFunctions      = "functions"
	StageDependencies   = "dependencies"
	StageInfrastructure = "infrastructure"
	StageEntrypoint     = "entrypoint"
	StageDeployment     = "deployment"
	StageOpenAPI        = "openapi"
	StageFinishing      = "finishing"
)

const (
	defaultServicePort = 8000
	defaultServiceHost = "0.0.0.0"
	scriptMode         = fs.FileMode(0o755)
)

// servicePipeline generates the artifacts of one service. It is created per
// dispatch and never shared.
type servicePipeline struct {
	svc       *ir.ServiceDecl
	renderer  render.Renderer
	target    pipeline.Target
	formatter format.Formatter
	opts      Options
	log       *zap.SugaredLogger
}

func newServicePipeline(svc *ir.ServiceDecl, r render.Renderer, target pipeline.Target, opts Options) *servicePipeline {
	log := opts.Logger
	if log == nil {
		log = logger.Named("python")
	}
	formatter := opts.Formatter
	if formatter == nil {
		formatter = format.Nop{}
	}
	return &servicePipeline{
		svc:       svc,
		renderer:  r,
		target:    target,
		formatter: formatter,
		opts:      opts,
		log:       log.With(logger.FieldService, svc.Name),
	}
}

// stages lists every stage in execution order.
func (p *servicePipeline) stages() []pipeline.Stage {
	return []pipeline.Stage{
		{Name: StageModels, Run: p.models},
		{Name: StageAPI, Run: p.api},
		{Name: StageMessaging, Run: p.messaging},
		{Name: StageFunctions, Run: p.functions},
		{Name: StageDependencies, Run: p.dependencies},
		{Name: StageInfrastructure, Run: p.infrastructure},
		{Name: StageEntrypoint, Run: p.entrypoint},
		{Name: StageDeployment, Run: p.deployment},
		{Name: StageOpenAPI, Run: p.openAPI},
		{Name: StageFinishing, Run: p.finishing},
	}
}

func (p *servicePipeline) run(ctx context.Context) (pipeline.Report, error) {
	return pipeline.New(p.svc.Name, p.log, p.stages()...).Run(ctx)
}

// rel returns a path below the service directory.
func (p *servicePipeline) rel(elem ...string) string {
	return path.Join(append([]string{p.svc.Name}, elem...)...)
}

func (p *servicePipeline) ensureDir(ctx context.Context, elem ...string) error {
	return p.target.Sink.EnsureDir(ctx, p.rel(elem...))
}

// emit renders templateID and writes it below the service directory.
// Excluded paths are skipped and report false.
func (p *servicePipeline) emit(ctx context.Context, templateID, file string, data render.Context, mode fs.FileMode) (bool, error) {
	target := p.rel(file)
	if config.ShouldExcludeFile(p.opts.ExcludeFiles, target) {
		p.log.Debugw("Skipping excluded file", logger.FieldFile, target)
		return false, nil
	}
	text, err := p.renderer.Render(templateID, data)
	if err != nil {
		return false, err
	}
	if err := p.target.Sink.WriteFile(ctx, target, []byte(text), mode); err != nil {
		return false, err
	}
	return true, nil
}

// emitter accumulates the number of written artifacts for a stage
type emitter struct {
	p     *servicePipeline
	count int
}

func (e *emitter) emit(ctx context.Context, templateID, file string, data render.Context, mode fs.FileMode) error {
	wrote, err := e.p.emit(ctx, templateID, file, data, mode)
	if wrote {
		e.count++
	}
	return err
}

// baseContext holds the keys every service template may use.
func (p *servicePipeline) baseContext() render.Context {
	return render.Context{"service_name": p.svc.Name}
}

func (p *servicePipeline) models(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx, "models"); err != nil {
		return 0, err
	}
	e := &emitter{p: p}
	for _, td := range p.svc.AllTypedefs() {
		data := p.baseContext()
		data["typedef"] = td
		data["id_field"] = ir.IdentityField(td)
		data["imports"] = fieldImports(td)
		if err := e.emit(ctx, "model", path.Join("models", modelFile(td)), data, 0); err != nil {
			return e.count, err
		}
	}
	return e.count, nil
}

func (p *servicePipeline) api(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx, "api"); err != nil {
		return 0, err
	}
	api := p.svc.API
	if api == nil {
		api = &ir.API{}
	}
	e := &emitter{p: p}
	for _, td := range p.svc.Typedefs() {
		data := p.baseContext()
		data["typedef"] = td
		data["id_field"] = ir.IdentityField(td)
		data["api"] = api
		if err := e.emit(ctx, "api", path.Join("api", modelFile(td)), data, 0); err != nil {
			return e.count, err
		}
	}
	return e.count, nil
}

func (p *servicePipeline) messaging(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx, "messaging"); err != nil {
		return 0, err
	}
	topology := messaging.ExtractFromAPI(p.svc.API)
	var internal []*ir.Function
	if p.svc.API != nil {
		internal = p.svc.API.Internal
	}
	if topology.Empty() {
		p.log.Debugw("No consumer annotations found")
	}

	e := &emitter{p: p}
	manifest := p.baseContext()
	manifest["topics"] = topology.Topics.Sorted()
	manifest["subscriptions"] = topology.FunctionsByChannel.Sorted()
	manifest["producers"] = messaging.Producers(internal).Sorted()
	if err := e.emit(ctx, "messaging", "messaging/messaging.py", manifest, 0); err != nil {
		return e.count, err
	}

	models := p.baseContext()
	models["messages"] = p.svc.Messages()
	if err := e.emit(ctx, "message_models", "messaging/message_models.py", models, 0); err != nil {
		return e.count, err
	}

	consumers := p.baseContext()
	consumers["functions"] = topology.FunctionsByMessage.Sorted()
	consumers["subscriptions"] = topology.FunctionsByChannel.Sorted()
	if err := e.emit(ctx, "consumer_methods", "messaging/consumer_methods.py", consumers, 0); err != nil {
		return e.count, err
	}
	return e.count, nil
}

func (p *servicePipeline) functions(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx, "api"); err != nil {
		return 0, err
	}
	fns := p.svc.Functions()
	data := p.baseContext()
	data["functions"] = fns
	data["imports"] = typedefImports(fns)

	e := &emitter{p: p}
	err := e.emit(ctx, "functions", path.Join("api", functionsFile), data, 0)
	return e.count, err
}

func (p *servicePipeline) dependencies(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx, "external"); err != nil {
		return 0, err
	}
	data := p.baseContext()
	data["dependencies"] = p.svc.Dependencies
	data["typedefs"] = p.svc.AllTypedefs()

	e := &emitter{p: p}
	err := e.emit(ctx, "dep_service", "external/dep_service.py", data, 0)
	return e.count, err
}

func (p *servicePipeline) infrastructure(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx, "external"); err != nil {
		return 0, err
	}
	e := &emitter{p: p}
	err := e.emit(ctx, "consul", "external/consul.py", render.Context{}, 0)
	return e.count, err
}

func (p *servicePipeline) entrypoint(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx); err != nil {
		return 0, err
	}
	topology := messaging.ExtractFromAPI(p.svc.API)

	data := p.baseContext()
	data["version"] = p.svc.Version
	data["description"] = p.svc.Description
	data["host"] = p.host()
	data["port"] = p.port()
	data["typedefs"] = p.svc.Typedefs()
	data["topics"] = topology.Topics.Sorted()
	data["has_messaging"] = !topology.Empty()

	e := &emitter{p: p}
	err := e.emit(ctx, "main", "main.py", data, 0)
	return e.count, err
}

func (p *servicePipeline) deployment(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx); err != nil {
		return 0, err
	}
	hasMessaging := !messaging.ExtractFromAPI(p.svc.API).Empty()

	e := &emitter{p: p}
	if err := e.emit(ctx, "requirements", "requirements.txt", render.Context{"has_messaging": hasMessaging}, 0); err != nil {
		return e.count, err
	}
	run := render.Context{"host": p.host(), "port": p.port()}
	if err := e.emit(ctx, "run", "run.sh", run, scriptMode); err != nil {
		return e.count, err
	}
	docker := render.Context{"python_version": p.opts.pythonVersion(), "port": p.port()}
	if err := e.emit(ctx, "dockerfile", "Dockerfile", docker, 0); err != nil {
		return e.count, err
	}
	return e.count, nil
}

func (p *servicePipeline) openAPI(ctx context.Context) (int, error) {
	if err := p.ensureDir(ctx); err != nil {
		return 0, err
	}
	target := p.rel("openapi.json")
	if config.ShouldExcludeFile(p.opts.ExcludeFiles, target) {
		return 0, nil
	}
	doc, err := openapi.MarshalJSON(openapi.BuildDocument(p.svc))
	if err != nil {
		return 0, &render.Error{Template: "openapi", Err: err}
	}
	if err := p.target.Sink.WriteFile(ctx, target, doc, 0); err != nil {
		return 0, err
	}
	return 1, nil
}

// finishing runs the formatter over the service directory. Its failure
// leaves the written artifacts in place and does not fail the pipeline.
func (p *servicePipeline) finishing(ctx context.Context) (int, error) {
	if p.target.Dir == "" {
		return 0, nil
	}
	dir := filepath.Join(p.target.Dir, filepath.FromSlash(p.svc.Name))
	if err := p.formatter.Format(ctx, dir); err != nil {
		p.log.Warnw("Formatter failed, keeping unformatted output", logger.FieldError, err)
	}
	return 0, nil
}

func (p *servicePipeline) port() int {
	switch {
	case p.svc.Port != 0:
		return p.svc.Port
	case p.svc.Deployment != nil && p.svc.Deployment.Port != 0:
		return p.svc.Deployment.Port
	default:
		return defaultServicePort
	}
}

func (p *servicePipeline) host() string {
	switch {
	case p.svc.Host != "":
		return p.svc.Host
	case p.svc.Deployment != nil && p.svc.Deployment.Host != "":
		return p.svc.Deployment.Host
	default:
		return defaultServiceHost
	}
}

// functionsFile holds the operations router, next to the per-typedef routers in api/.
const functionsFile = "functions.py"

// ReservedTypedefName reports whether a typedef called name would write the
// operations module api/functions.py.
func ReservedTypedefName(name string) bool {
	return utils.LowerFirst(name)+".py" == functionsFile
}

// checkModuleNames rejects own typedefs whose api module would overwrite the
// operations module, and typedefs whose modules would overwrite each other.
func checkModuleNames(svc *ir.ServiceDecl) error {
	for _, td := range svc.Typedefs() {
		if ReservedTypedefName(td.Name) {
			return errors.WithHint(
				errors.Wrapf(pipeline.ErrInvalidDeclaration, "typedef %s would overwrite api/%s", td.Name, functionsFile),
				"rename the typedef")
		}
	}
	owners := map[string]string{}
	for _, td := range svc.AllTypedefs() {
		file := modelFile(td)
		if other, ok := owners[file]; ok && other != td.Name {
			return errors.Wrapf(pipeline.ErrInvalidDeclaration, "typedefs %s and %s both map to models/%s", other, td.Name, file)
		}
		owners[file] = td.Name
	}
	return nil
}

// modelFile is the file name of a typedef's module: Order -> order.py
func modelFile(td *ir.TypeDef) string {
	return utils.LowerFirst(td.Name) + ".py"
}

// fieldImports lists the other typedefs td's fields refer to, sorted.
func fieldImports(td *ir.TypeDef) []string {
	types := make([]ir.TypeRef, 0, len(td.Fields))
	for _, f := range td.Fields {
		types = append(types, f.Type)
	}
	names := referencedNames(types)
	out := names[:0]
	for _, n := range names {
		if n != td.Name {
			out = append(out, n)
		}
	}
	return out
}
