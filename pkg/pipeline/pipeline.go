// Package pipeline runs ordered generation stages for one declaration and
// classifies the way they fail.
package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/render"
	"github.com/blimu-dev/svc-gen/pkg/sink"
)

// Target is where a declaration's artifacts go.
type Target struct {
	Sink sink.OutputSink
	// Dir is the filesystem directory backing Sink. It is empty for sinks that
	// do not touch the filesystem, in which case filesystem-only steps such as
	// formatting are skipped.
	Dir string
}

// Stage is one ordered step. Run returns the number of artifacts it wrote.
type Stage struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// StageReport describes a completed stage
type StageReport struct {
	Name      string
	Artifacts int
	Duration  time.Duration
}

// Report describes a pipeline run
type Report struct {
	Stages []StageReport
}

// Artifacts returns the number of artifacts written by all stages.
func (r Report) Artifacts() int {
	n := 0
	for _, s := range r.Stages {
		n += s.Artifacts
	}
	return n
}

// Pipeline runs its stages one at a time, in order. The first failing stage
// stops the run.
type Pipeline struct {
	// Name identifies the declaration the pipeline is bound to.
	Name   string
	Stages []Stage
	Logger *zap.SugaredLogger
}

// New creates a pipeline bound to the named declaration.
func New(name string, log *zap.SugaredLogger, stages ...Stage) *Pipeline {
	return &Pipeline{Name: name, Stages: stages, Logger: log}
}

// Run executes the stages. A failure is returned as a *StageError and the
// report holds the stages that completed before it.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	log := p.Logger
	if log == nil {
		log = logger.Logger
	}

	var report Report
	for _, st := range p.Stages {
		if err := ctx.Err(); err != nil {
			return report, NewStageError(p.Name, st.Name, err)
		}

		log.Debugw("Stage started", logger.FieldService, p.Name, logger.FieldStage, st.Name)
		start := time.Now()
		n, err := st.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			se := NewStageError(p.Name, st.Name, err)
			log.Errorw("Stage failed",
				logger.FieldService, p.Name,
				logger.FieldStage, st.Name,
				logger.FieldKind, se.Kind.String(),
				logger.FieldError, err)
			return report, se
		}

		report.Stages = append(report.Stages, StageReport{Name: st.Name, Artifacts: n, Duration: elapsed})
		log.Debugw("Stage finished",
			logger.FieldService, p.Name,
			logger.FieldStage, st.Name,
			logger.FieldCount, n,
			logger.FieldDuration, elapsed.Milliseconds())
	}
	return report, nil
}

// FailureKind classifies a stage failure
type FailureKind int

const (
	// KindRender means a template could not produce text.
	KindRender FailureKind = iota + 1
	// KindFilesystem means a directory or file could not be written.
	KindFilesystem
	// KindCanceled means the context ended before the stage completed.
	KindCanceled
	// KindInvalid means the declaration cannot be generated as given.
	KindInvalid
)

// ErrInvalidDeclaration marks errors about the shape of a declaration.
var ErrInvalidDeclaration = errors.New("invalid declaration")

func (k FailureKind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindFilesystem:
		return "filesystem"
	case KindCanceled:
		return "canceled"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// StageError reports the stage that aborted a pipeline.
type StageError struct {
	Service string
	Stage   string
	Kind    FailureKind
	Err     error
}

func (e *StageError) Error() string {
	return e.Service + ": stage " + e.Stage + " (" + e.Kind.String() + "): " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError classifies err and attributes it to a stage of service.
func NewStageError(service, stage string, err error) *StageError {
	return &StageError{Service: service, Stage: stage, Kind: Classify(err), Err: err}
}

// Classify maps an error raised inside a stage to its failure kind.
// Anything that is not a render error, a cancellation or an invalid
// declaration is treated as a filesystem failure.
func Classify(err error) FailureKind {
	var re *render.Error
	switch {
	case errors.As(err, &re):
		return KindRender
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrInvalidDeclaration):
		return KindInvalid
	default:
		return KindFilesystem
	}
}
