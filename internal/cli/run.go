package cli

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/viper"

	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/config"
	"github.com/blimu-dev/svc-gen/pkg/generator"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/loader"
	"github.com/blimu-dev/svc-gen/pkg/openapi"
)

// ErrGenerationFailed is returned when at least one declaration failed.
var ErrGenerationFailed = errors.New("generation failed")

type RunGenerateParams struct {
	ModelPath  string
	ConfigPath string
	// Only restricts generation to the named declarations.
	Only []string
	// Viper carries flag bindings; nil uses defaults and the environment.
	Viper *viper.Viper
	// Out receives the summary table; nil means stdout.
	Out io.Writer
}

func (p RunGenerateParams) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func RunGenerate(ctx context.Context, p RunGenerateParams) error {
	if p.ModelPath == "" {
		return errors.New("--model is required")
	}
	v := p.Viper
	if v == nil {
		v = config.NewViper()
	}
	cfg, err := config.LoadWithViper(v, p.ConfigPath)
	if err != nil {
		return err
	}
	model, err := loader.Load(absPath(p.ModelPath))
	if err != nil {
		return err
	}

	logger.Logger.Debugw("Loaded model", "model", p.ModelPath, logger.FieldCount, len(model.Decls), "outDir", cfg.OutDir)
	results, err := generator.NewServiceFromConfig(cfg).GenerateModel(ctx, model, generator.GenerateOptions{
		Language:      cfg.Language,
		OutDir:        cfg.OutDir,
		SkipUnchanged: cfg.SkipUnchanged,
		Parallelism:   cfg.Parallelism,
		Only:          p.Only,
	})
	if err != nil {
		return err
	}
	if err := printSummary(p.out(), results); err != nil {
		return err
	}
	if failed := generator.Failures(results); len(failed) > 0 {
		return errors.Wrapf(ErrGenerationFailed, "%d of %d declarations", len(failed), len(results))
	}
	return nil
}

// RunValidate loads a model and checks the API description of every service.
func RunValidate(ctx context.Context, modelPath string, out io.Writer) error {
	model, err := loader.Load(modelPath)
	if err != nil {
		return err
	}
	for _, svc := range model.Services() {
		if err := openapi.Validate(ctx, openapi.BuildDocument(svc)); err != nil {
			return errors.Wrapf(err, "service %s", svc.Name)
		}
	}
	if out == nil {
		out = os.Stdout
	}
	pterm.Success.WithWriter(out).Printfln("%s: %d declarations, %d services", modelPath, len(model.Decls), len(model.Services()))
	return nil
}

// RunOpenAPI writes the OpenAPI document of one service of a model.
func RunOpenAPI(ctx context.Context, modelPath, service string, out io.Writer) error {
	model, err := loader.Load(modelPath)
	if err != nil {
		return err
	}
	svc, ok := model.Service(service)
	if !ok {
		return errors.WithHintf(errors.Newf("service %s not found", service),
			"services in %s: %v", modelPath, serviceNames(model))
	}
	doc := openapi.BuildDocument(svc)
	if err := openapi.Validate(ctx, doc); err != nil {
		return err
	}
	data, err := openapi.MarshalJSON(doc)
	if err != nil {
		return err
	}
	if out == nil {
		out = os.Stdout
	}
	_, err = out.Write(data)
	return err
}

func serviceNames(m *ir.Model) []string {
	var names []string
	for _, s := range m.Services() {
		names = append(names, s.Name)
	}
	return names
}
