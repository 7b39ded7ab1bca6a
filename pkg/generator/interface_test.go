package generator

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blimu-dev/svc-gen/pkg/config"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/pipeline"
)

func ordersModel() *ir.Model {
	order := &ir.TypeDef{Name: "Order", Fields: []*ir.Field{
		{Name: "id", Type: ir.Prim("int"), IsID: true},
		{Name: "total", Type: ir.Prim("float")},
	}}
	m := &ir.Model{Name: "shop"}
	m.Decls = []ir.Decl{
		&ir.ServiceDecl{Name: "Orders", Model: m, API: &ir.API{
			Typedefs: []*ir.TypeDef{order},
			Functions: []*ir.Function{{
				Name:     "createOrder",
				Params:   []*ir.Param{{Name: "total", Type: ir.Prim("float")}},
				Returns:  order,
				HTTPVerb: ir.HTTPPost,
			}},
		}},
		&ir.ServiceRegistryDecl{Name: "registry"},
		&ir.APIGateway{Name: "edge", Port: 8080, Routes: []ir.Route{{Service: "Orders"}}},
	}
	return m
}

// fakeGenerator fails for the services named in fail.
type fakeGenerator struct {
	fail  map[string]bool
	calls atomic.Int32
}

func (g *fakeGenerator) GetType() string { return "fake" }

func (g *fakeGenerator) GenerateService(ctx context.Context, svc *ir.ServiceDecl, target pipeline.Target) (pipeline.Report, error) {
	g.calls.Add(1)
	if g.fail[svc.Name] {
		return pipeline.Report{}, pipeline.NewStageError(svc.Name, "models", errors.New("disk full"))
	}
	if err := target.Sink.EnsureDir(ctx, svc.Name); err != nil {
		return pipeline.Report{}, err
	}
	return pipeline.Report{Stages: []pipeline.StageReport{{Name: "models", Artifacts: 1}}},
		target.Sink.WriteFile(ctx, svc.Name+"/main.py", []byte("pass\n"), 0)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGenerator{})
	r.Register(NewService().GetRegistry().generators["python"])

	gen, ok := r.Get("fake")
	require.True(t, ok)
	assert.Equal(t, "fake", gen.GetType())
	assert.Equal(t, []string{"fake", "python"}, r.GetAvailableTypes())

	_, ok = r.Get("rust")
	assert.False(t, ok)
}

func TestStrategiesFor(t *testing.T) {
	s := StrategiesFor(&fakeGenerator{})
	assert.NotNil(t, s.Service)
	assert.Nil(t, s.Gateway)
	assert.Nil(t, s.Registry)
	assert.Nil(t, s.ConfigServer)

	gen, _ := NewService().GetRegistry().Get("python")
	s = StrategiesFor(gen)
	assert.NotNil(t, s.Service)
	assert.NotNil(t, s.Gateway)
	assert.Nil(t, s.Registry)
}

func TestGenerateAllIsolatesFailures(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]bool{"Billing": true}}
	r := NewRegistry()
	r.Register(gen)
	mem, _ := memTarget()

	decls := []ir.Decl{
		&ir.ServiceDecl{Name: "Orders"},
		&ir.ServiceDecl{Name: "Billing"},
		&ir.ServiceDecl{Name: "Shipping"},
		&ir.ConfigServerDecl{Name: "config"},
	}
	results, err := NewServiceWithRegistry(r).GenerateAll(context.Background(), decls, GenerateOptions{
		Language:    "fake",
		Sink:        mem,
		Parallelism: 3,
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, OutcomeGenerated, results[0].Outcome)
	assert.Equal(t, OutcomeFailed, results[1].Outcome)
	assert.Equal(t, OutcomeGenerated, results[2].Outcome)
	assert.Equal(t, OutcomeSkipped, results[3].Outcome)
	assert.Equal(t, int32(3), gen.calls.Load())

	assert.Equal(t, []string{"Orders/main.py", "Shipping/main.py"}, mem.Paths())
	failed := Failures(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "Billing", failed[0].Decl)
}

func TestGenerateAllOnly(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGenerator{})
	mem, _ := memTarget()

	results, err := NewServiceWithRegistry(r).GenerateAll(context.Background(), []ir.Decl{
		&ir.ServiceDecl{Name: "Orders"},
		&ir.ServiceDecl{Name: "Billing"},
	}, GenerateOptions{Language: "fake", Sink: mem, Only: []string{"Billing"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Billing", results[0].Decl)
	assert.Equal(t, []string{"Billing/main.py"}, mem.Paths())
}

func TestGenerateAllNilDeclaration(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeGenerator{})
	mem, _ := memTarget()
	svc := NewServiceWithRegistry(r)

	results, err := svc.GenerateAll(context.Background(), []ir.Decl{
		nil,
		&ir.ServiceDecl{Name: "Orders"},
	}, GenerateOptions{Language: "fake", Sink: mem})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, ErrNilDeclaration)
	assert.Equal(t, OutcomeGenerated, results[1].Outcome)

	results, err = svc.GenerateAll(context.Background(), []ir.Decl{nil, &ir.ServiceDecl{Name: "Orders"}},
		GenerateOptions{Language: "fake", Sink: mem, Only: []string{"Orders"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Orders", results[0].Decl)
}

func TestGenerateAllUnknownLanguage(t *testing.T) {
	_, err := NewService().GenerateAll(context.Background(), nil, GenerateOptions{Language: "cobol", OutDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language: cobol")
}

func TestGenerateAllRequiresDestination(t *testing.T) {
	_, err := NewService().GenerateAll(context.Background(), nil, GenerateOptions{})
	assert.Error(t, err)
}

func TestGenerateModelPython(t *testing.T) {
	mem, _ := memTarget()

	results, err := NewService().GenerateModel(context.Background(), ordersModel(), GenerateOptions{Sink: mem})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, OutcomeGenerated, results[0].Outcome)
	assert.Equal(t, OutcomeSkipped, results[1].Outcome, "registries have no python strategy")
	assert.Equal(t, OutcomeGenerated, results[2].Outcome)

	assert.Contains(t, string(mem.Get("Orders/models/order.py")), `ID_FIELD = "id"`)
	assert.Contains(t, string(mem.Get("edge/nginx.conf")), "listen 8080;")
	for _, p := range mem.Paths() {
		assert.NotContains(t, p, "registry")
	}
}

func TestGenerateFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.OutDir = filepath.Join(t.TempDir(), "out")
	cfg.Formatter = nil
	cfg.ExcludeFiles = []string{"Orders/Dockerfile"}

	results, err := NewServiceFromConfig(cfg).GenerateFromConfig(context.Background(), cfg, ordersModel())
	require.NoError(t, err)
	assert.Empty(t, Failures(results))

	assert.FileExists(t, filepath.Join(cfg.OutDir, "Orders", "main.py"))
	assert.FileExists(t, filepath.Join(cfg.OutDir, "edge", "nginx.conf"))
	_, err = os.Stat(filepath.Join(cfg.OutDir, "Orders", "Dockerfile"))
	assert.True(t, os.IsNotExist(err))
}
