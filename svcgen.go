// Package svcgen generates Python service scaffolding from service models.
//
// This package offers a simple API for common use cases; the generator
// package exposes the registry, batch generation and per-declaration results.
//
// Quick Start:
//
//	import "github.com/blimu-dev/svc-gen"
//
//	// Generate every declaration of a model document
//	results, err := svcgen.GenerateFromFiles("./shop.yaml", "")
//
// For more advanced usage, see the generator package.
package svcgen

import (
	"context"

	"go.uber.org/zap"

	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/generator"
	"github.com/blimu-dev/svc-gen/pkg/ir"
)

// Generate generates one declaration into outDir. With debug set, progress is
// logged to stderr by a logger private to the call. Unsupported declaration
// kinds are skipped; failures are reported in the Result, never as a panic.
//
// Example:
//
//	res := svcgen.Generate(orders, "./output", false)
//	if res.Failed() {
//		log.Fatalf("generation failed: %v", res.Err)
//	}
func Generate(decl ir.Decl, outDir string, debug bool) generator.Result {
	var log *zap.SugaredLogger
	if debug {
		if l, err := logger.New(logger.Options{Debug: true}); err == nil {
			log = l
			defer func() { _ = log.Sync() }()
		}
	}
	return generator.GenerateWithLogger(context.Background(), decl, outDir, log)
}

// GenerateFromFiles generates the declarations of a model document.
// configPath may be empty, in which case svcgen.yaml in the working directory
// is used when present. Optionally, only the named declarations are generated.
//
// Example:
//
//	results, err := svcgen.GenerateFromFiles("./shop.yaml", "./svcgen.yaml", "Orders")
func GenerateFromFiles(modelPath, configPath string, only ...string) ([]generator.Result, error) {
	return generator.GenerateFromFiles(context.Background(), modelPath, configPath, only...)
}

// ValidateModel validates a model document.
// This is useful for checking a model before generating from it.
func ValidateModel(modelPath string) error {
	return generator.ValidateModel(context.Background(), modelPath)
}
