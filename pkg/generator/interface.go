package generator

import (
	"context"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/config"
	"github.com/blimu-dev/svc-gen/pkg/format"
	"github.com/blimu-dev/svc-gen/pkg/generator/python"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/pipeline"
	"github.com/blimu-dev/svc-gen/pkg/sink"
)

// Generator defines the interface for language generators. Every generator
// handles services; the other declaration variants are optional interfaces.
type Generator interface {
	// GenerateService writes the artifacts of one service to target
	GenerateService(ctx context.Context, svc *ir.ServiceDecl, target pipeline.Target) (pipeline.Report, error)
	// GetType returns the type identifier for this generator (e.g., "python")
	GetType() string
}

// GatewayGenerator is implemented by generators that handle API gateways
type GatewayGenerator interface {
	GenerateGateway(ctx context.Context, gw *ir.APIGateway, target pipeline.Target) (pipeline.Report, error)
}

// RegistryGenerator is implemented by generators that handle service registries
type RegistryGenerator interface {
	GenerateRegistry(ctx context.Context, r *ir.ServiceRegistryDecl, target pipeline.Target) (pipeline.Report, error)
}

// ConfigServerGenerator is implemented by generators that handle config servers
type ConfigServerGenerator interface {
	GenerateConfigServer(ctx context.Context, c *ir.ConfigServerDecl, target pipeline.Target) (pipeline.Report, error)
}

// StrategiesFor collects the strategies g supports.
func StrategiesFor(g Generator) Strategies {
	s := Strategies{Service: g.GenerateService}
	if gw, ok := g.(GatewayGenerator); ok {
		s.Gateway = gw.GenerateGateway
	}
	if r, ok := g.(RegistryGenerator); ok {
		s.Registry = r.GenerateRegistry
	}
	if c, ok := g.(ConfigServerGenerator); ok {
		s.ConfigServer = c.GenerateConfigServer
	}
	return s
}

// Registry manages available generators
type Registry struct {
	generators map[string]Generator
}

// NewRegistry creates a new generator registry
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]Generator),
	}
}

// Register adds a generator to the registry
func (r *Registry) Register(gen Generator) {
	r.generators[gen.GetType()] = gen
}

// Get retrieves a generator by type
func (r *Registry) Get(genType string) (Generator, bool) {
	gen, exists := r.generators[genType]
	return gen, exists
}

// GetAvailableTypes returns all registered generator types, sorted
func (r *Registry) GetAvailableTypes() []string {
	types := make([]string, 0, len(r.generators))
	for t := range r.generators {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// GenerateOptions contains options for a generation run
type GenerateOptions struct {
	// Language selects the registered generator. Defaults to "python".
	Language string
	// OutDir is the output directory. It backs the default sink and is where
	// formatting runs.
	OutDir string
	// Sink replaces the filesystem sink rooted at OutDir.
	Sink sink.OutputSink
	// SkipUnchanged is passed to the default filesystem sink.
	SkipUnchanged bool
	// Parallelism bounds concurrent declarations; values below 1 mean 1.
	Parallelism int
	// Only restricts generation to the named declarations (optional).
	Only []string
}

// Service provides high-level generation functionality
type Service struct {
	registry *Registry
	log      *zap.SugaredLogger
}

// NewService creates a new generator service with default generators
func NewService() *Service {
	registry := NewRegistry()
	registry.Register(python.NewPythonGenerator())
	return NewServiceWithRegistry(registry)
}

// NewServiceFromConfig creates a generator service whose generators follow cfg
func NewServiceFromConfig(cfg *config.Config) *Service {
	return NewServiceFromConfigWithLogger(cfg, nil)
}

// NewServiceFromConfigWithLogger is NewServiceFromConfig logging to log
// instead of the global logger. A nil log means the global logger.
func NewServiceFromConfigWithLogger(cfg *config.Config, log *zap.SugaredLogger) *Service {
	var genLog *zap.SugaredLogger
	if log != nil {
		genLog = log.Named("python")
	}
	registry := NewRegistry()
	registry.Register(python.NewPythonGeneratorWithOptions(python.Options{
		PythonVersion: cfg.LanguageVersion,
		Formatter:     format.NewCommandFormatter(cfg.Formatter),
		ExcludeFiles:  cfg.ExcludeFiles,
		Gateway: python.GatewayOptions{
			ConfigPath: cfg.Gateway.ConfigPath,
			Port:       cfg.Gateway.Port,
			PortMin:    cfg.Gateway.PortMin,
			PortMax:    cfg.Gateway.PortMax,
		},
		Logger: genLog,
	}))
	s := NewServiceWithRegistry(registry)
	if log != nil {
		s.log = log.Named("generator")
	}
	return s
}

// NewServiceWithRegistry creates a new generator service with a custom registry
func NewServiceWithRegistry(registry *Registry) *Service {
	return &Service{
		registry: registry,
		log:      logger.Named("generator"),
	}
}

// GetRegistry returns the generator registry
func (s *Service) GetRegistry() *Registry {
	return s.registry
}

// GenerateFromConfig generates every declaration of model as configured by cfg
func (s *Service) GenerateFromConfig(ctx context.Context, cfg *config.Config, model *ir.Model) ([]Result, error) {
	return s.GenerateModel(ctx, model, GenerateOptions{
		Language:      cfg.Language,
		OutDir:        cfg.OutDir,
		SkipUnchanged: cfg.SkipUnchanged,
		Parallelism:   cfg.Parallelism,
	})
}

// GenerateModel generates every declaration of model
func (s *Service) GenerateModel(ctx context.Context, model *ir.Model, opts GenerateOptions) ([]Result, error) {
	if model == nil {
		return nil, errors.New("nil model")
	}
	return s.GenerateAll(ctx, model.Decls, opts)
}

// Generate generates a single declaration
func (s *Service) Generate(ctx context.Context, decl ir.Decl, opts GenerateOptions) (Result, error) {
	results, err := s.GenerateAll(ctx, []ir.Decl{decl}, opts)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// GenerateAll generates decls and returns one Result per declaration, in
// input order. A failing declaration does not stop the others. The error is
// only set when the run cannot start at all.
func (s *Service) GenerateAll(ctx context.Context, decls []ir.Decl, opts GenerateOptions) ([]Result, error) {
	lang := opts.Language
	if lang == "" {
		lang = "python"
	}
	gen, exists := s.registry.Get(lang)
	if !exists {
		return nil, errors.WithHintf(errors.Newf("unsupported language: %s", lang),
			"available languages: %v", s.registry.GetAvailableTypes())
	}

	target, err := s.target(opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := s.log.With(logger.FieldRunID, runID)
	dispatcher := NewDispatcher(StrategiesFor(gen), target, log)

	selected := filterDecls(decls, opts.Only)
	log.Infow("Starting generation", "language", lang, logger.FieldCount, len(selected))

	results := make([]Result, len(selected))
	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, decl := range selected {
		g.Go(func() error {
			results[i] = dispatcher.Dispatch(ctx, decl)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			log.Errorw("Declaration failed", logger.FieldDecl, r.Decl, logger.FieldError, r.Err)
		}
	}
	log.Infow("Generation finished", logger.FieldCount, len(results), "failed", failed)
	return results, nil
}

func (s *Service) target(opts GenerateOptions) (pipeline.Target, error) {
	if opts.Sink != nil {
		return pipeline.Target{Sink: opts.Sink, Dir: opts.OutDir}, nil
	}
	if opts.OutDir == "" {
		return pipeline.Target{}, errors.New("an output directory or sink is required")
	}
	// Ensure output directory exists before any declaration runs
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return pipeline.Target{}, errors.Wrapf(err, "failed to create output directory %s", opts.OutDir)
	}
	fsSink := sink.NewFilesystemSink(opts.OutDir)
	fsSink.SkipUnchanged = opts.SkipUnchanged
	return pipeline.Target{Sink: fsSink, Dir: opts.OutDir}, nil
}

func filterDecls(decls []ir.Decl, only []string) []ir.Decl {
	if len(only) == 0 {
		return decls
	}
	keep := map[string]bool{}
	for _, n := range only {
		keep[n] = true
	}
	var out []ir.Decl
	for _, d := range decls {
		if !ir.IsNil(d) && keep[d.DeclName()] {
			out = append(out, d)
		}
	}
	return out
}

// Failures returns the failed results
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}
