package generator

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/pipeline"
)

// Strategy functions generate one declaration variant into a target.
type (
	ServiceStrategy      func(ctx context.Context, s *ir.ServiceDecl, t pipeline.Target) (pipeline.Report, error)
	RegistryStrategy     func(ctx context.Context, r *ir.ServiceRegistryDecl, t pipeline.Target) (pipeline.Report, error)
	GatewayStrategy      func(ctx context.Context, g *ir.APIGateway, t pipeline.Target) (pipeline.Report, error)
	ConfigServerStrategy func(ctx context.Context, c *ir.ConfigServerDecl, t pipeline.Target) (pipeline.Report, error)
)

// Strategies holds one strategy per declaration variant. A nil strategy
// means the variant is not supported; dispatching it is a no-op.
type Strategies struct {
	Service      ServiceStrategy
	Registry     RegistryStrategy
	Gateway      GatewayStrategy
	ConfigServer ConfigServerStrategy
}

// Outcome is the result state of a dispatch
type Outcome int

const (
	OutcomeGenerated Outcome = iota + 1
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGenerated:
		return "generated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports what a dispatch did for one declaration
type Result struct {
	Decl     string
	Kind     ir.DeclKind
	Outcome  Outcome
	Report   pipeline.Report
	Err      error
	Duration time.Duration
}

// Failed reports whether the declaration could not be generated.
func (r Result) Failed() bool { return r.Outcome == OutcomeFailed }

// StageError returns the failing stage, if the failure came from one.
func (r Result) StageError() (*pipeline.StageError, bool) {
	var se *pipeline.StageError
	if errors.As(r.Err, &se) {
		return se, true
	}
	return nil, false
}

// ErrNilDeclaration is reported for a nil declaration.
var ErrNilDeclaration = errors.New("nil declaration")

func nilDeclResult() Result {
	return Result{Outcome: OutcomeFailed, Err: ErrNilDeclaration}
}

// Dispatcher routes declarations to the strategy for their variant.
// It holds no state that changes between dispatches.
type Dispatcher struct {
	strategies Strategies
	target     pipeline.Target
	log        *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher writing to target.
func NewDispatcher(strategies Strategies, target pipeline.Target, log *zap.SugaredLogger) *Dispatcher {
	if log == nil {
		log = logger.Named("dispatch")
	}
	return &Dispatcher{strategies: strategies, target: target, log: log}
}

// Dispatch generates decl. It never panics on unknown variants and never
// returns an error: failures are reported in the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, decl ir.Decl) Result {
	if ir.IsNil(decl) {
		return nilDeclResult()
	}
	start := time.Now()
	res := Result{Decl: decl.DeclName(), Kind: decl.Kind()}

	v := &dispatchVisitor{ctx: ctx, d: d}
	err := decl.Accept(v)
	res.Duration = time.Since(start)
	res.Report = v.report

	switch {
	case !v.ran:
		res.Outcome = OutcomeSkipped
		d.log.Debugw("No strategy for declaration", logger.FieldDecl, res.Decl, logger.FieldKind, string(res.Kind))
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Err = err
	default:
		res.Outcome = OutcomeGenerated
		d.log.Infow("Generated declaration",
			logger.FieldDecl, res.Decl,
			logger.FieldKind, string(res.Kind),
			logger.FieldCount, res.Report.Artifacts(),
			logger.FieldDuration, res.Duration.Milliseconds())
	}
	return res
}

// dispatchVisitor runs a single dispatch
type dispatchVisitor struct {
	ctx    context.Context
	d      *Dispatcher
	report pipeline.Report
	ran    bool
}

func (v *dispatchVisitor) VisitService(s *ir.ServiceDecl) error {
	if v.d.strategies.Service == nil {
		return nil
	}
	v.ran = true
	var err error
	v.report, err = v.d.strategies.Service(v.ctx, s, v.d.target)
	return err
}

func (v *dispatchVisitor) VisitServiceRegistry(r *ir.ServiceRegistryDecl) error {
	if v.d.strategies.Registry == nil {
		return nil
	}
	v.ran = true
	var err error
	v.report, err = v.d.strategies.Registry(v.ctx, r, v.d.target)
	return err
}

func (v *dispatchVisitor) VisitAPIGateway(g *ir.APIGateway) error {
	if v.d.strategies.Gateway == nil {
		return nil
	}
	v.ran = true
	var err error
	v.report, err = v.d.strategies.Gateway(v.ctx, g, v.d.target)
	return err
}

func (v *dispatchVisitor) VisitConfigServer(c *ir.ConfigServerDecl) error {
	if v.d.strategies.ConfigServer == nil {
		return nil
	}
	v.ran = true
	var err error
	v.report, err = v.d.strategies.ConfigServer(v.ctx, c, v.d.target)
	return err
}
