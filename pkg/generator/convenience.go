package generator

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/blimu-dev/svc-gen/pkg/config"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/loader"
	"github.com/blimu-dev/svc-gen/pkg/openapi"
)

// Generate is a convenience function generating one declaration into outDir
// with the default configuration. Failures, including configuration errors,
// are reported in the Result.
func Generate(ctx context.Context, decl ir.Decl, outDir string) Result {
	return GenerateWithLogger(ctx, decl, outDir, nil)
}

// GenerateWithLogger is Generate logging to log. A nil log means the global logger.
func GenerateWithLogger(ctx context.Context, decl ir.Decl, outDir string, log *zap.SugaredLogger) Result {
	if ir.IsNil(decl) {
		return nilDeclResult()
	}
	failed := func(err error) Result {
		return Result{Decl: decl.DeclName(), Kind: decl.Kind(), Outcome: OutcomeFailed, Err: err}
	}

	cfg, err := config.Default()
	if err != nil {
		return failed(err)
	}
	absOutDir, err := filepath.Abs(outDir)
	if err != nil {
		return failed(errors.Wrapf(err, "failed to resolve %s", outDir))
	}
	cfg.OutDir = absOutDir

	res, err := NewServiceFromConfigWithLogger(cfg, log).Generate(ctx, decl, GenerateOptions{
		Language:      cfg.Language,
		OutDir:        cfg.OutDir,
		SkipUnchanged: cfg.SkipUnchanged,
	})
	if err != nil {
		return failed(err)
	}
	return res
}

// GenerateFromFiles loads a model document and a config file (optional) and
// generates every declaration, or only the named ones.
func GenerateFromFiles(ctx context.Context, modelPath, configPath string, only ...string) ([]Result, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	model, err := loader.Load(modelPath)
	if err != nil {
		return nil, err
	}
	return NewServiceFromConfig(cfg).GenerateModel(ctx, model, GenerateOptions{
		Language:      cfg.Language,
		OutDir:        cfg.OutDir,
		SkipUnchanged: cfg.SkipUnchanged,
		Parallelism:   cfg.Parallelism,
		Only:          only,
	})
}

// ValidateModel loads a model document and validates the OpenAPI description
// of each of its services.
func ValidateModel(ctx context.Context, modelPath string) error {
	model, err := loader.Load(modelPath)
	if err != nil {
		return err
	}
	for _, svc := range model.Services() {
		if err := openapi.Validate(ctx, openapi.BuildDocument(svc)); err != nil {
			return errors.Wrapf(err, "service %s", svc.Name)
		}
	}
	return nil
}
