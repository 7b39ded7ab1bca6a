package python

import (
	"context"
	"embed"
	"sync"

	"go.uber.org/zap"

	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/format"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/pipeline"
	"github.com/blimu-dev/svc-gen/pkg/render"
)

//go:embed templates/*
var templatesFS embed.FS

// templates parses the embedded template set once.
var templates = sync.OnceValues(func() (render.Renderer, error) {
	r, err := render.NewTemplateRenderer(templatesFS, "templates", funcMap())
	if err != nil {
		return nil, &render.Error{Template: "templates", Err: err}
	}
	return r, nil
})

// DefaultPythonVersion is the Python release targeted by generated services.
const DefaultPythonVersion = "3.10"

// Options configure the Python generator
type Options struct {
	// PythonVersion selects the base image of generated Dockerfiles.
	PythonVersion string
	// Formatter runs over every generated service directory. Nil disables formatting.
	Formatter format.Formatter
	// ExcludeFiles are paths relative to the output directory that are never written.
	ExcludeFiles []string
	Gateway      GatewayOptions
	// Renderer replaces the embedded template set.
	Renderer render.Renderer
	Logger   *zap.SugaredLogger
}

func (o Options) pythonVersion() string {
	if o.PythonVersion == "" {
		return DefaultPythonVersion
	}
	return o.PythonVersion
}

// PythonGenerator implements the Generator interface for Python services
type PythonGenerator struct {
	opts Options
}

// NewPythonGenerator creates a new Python generator with default options
func NewPythonGenerator() *PythonGenerator {
	return NewPythonGeneratorWithOptions(Options{})
}

// NewPythonGeneratorWithOptions creates a new Python generator
func NewPythonGeneratorWithOptions(opts Options) *PythonGenerator {
	return &PythonGenerator{opts: opts}
}

// GetType returns the generator type identifier
func (g *PythonGenerator) GetType() string {
	return "python"
}

// GenerateService runs the artifact pipeline for svc. Each call builds its
// own pipeline, so concurrent calls for different services are independent.
func (g *PythonGenerator) GenerateService(ctx context.Context, svc *ir.ServiceDecl, target pipeline.Target) (pipeline.Report, error) {
	if err := checkModuleNames(svc); err != nil {
		return pipeline.Report{}, pipeline.NewStageError(svc.Name, "validate", err)
	}
	renderer, err := g.renderer()
	if err != nil {
		return pipeline.Report{}, pipeline.NewStageError(svc.Name, "templates", err)
	}
	opts := g.opts
	opts.Logger = g.logger()
	return newServicePipeline(svc, renderer, target, opts).run(ctx)
}

// GenerateGateway writes the reverse proxy configuration of gw.
func (g *PythonGenerator) GenerateGateway(ctx context.Context, gw *ir.APIGateway, target pipeline.Target) (pipeline.Report, error) {
	return g.generateGateway(ctx, gw, target)
}

func (g *PythonGenerator) renderer() (render.Renderer, error) {
	if g.opts.Renderer != nil {
		return g.opts.Renderer, nil
	}
	return templates()
}

func (g *PythonGenerator) logger() *zap.SugaredLogger {
	if g.opts.Logger != nil {
		return g.opts.Logger
	}
	return logger.Named("python")
}
