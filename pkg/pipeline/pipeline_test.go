package pipeline

import (
	"context"
	"io/fs"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blimu-dev/svc-gen/pkg/render"
)

func counting(name string, n int, order *[]string) Stage {
	return Stage{Name: name, Run: func(context.Context) (int, error) {
		*order = append(*order, name)
		return n, nil
	}}
}

func TestRunInOrder(t *testing.T) {
	var order []string
	p := New("Orders", nil,
		counting("models", 2, &order),
		counting("api", 1, &order),
		counting("deployment", 3, &order),
	)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"models", "api", "deployment"}, order)
	assert.Equal(t, 6, report.Artifacts())
	require.Len(t, report.Stages, 3)
	assert.Equal(t, "api", report.Stages[1].Name)
}

func TestRenderFailureStopsPipeline(t *testing.T) {
	var order []string
	p := New("Orders", nil,
		counting("models", 1, &order),
		Stage{Name: "api", Run: func(context.Context) (int, error) {
			return 0, &render.Error{Template: "api", Err: errors.New("missing key")}
		}},
		counting("functions", 1, &order),
	)

	report, err := p.Run(context.Background())
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Orders", se.Service)
	assert.Equal(t, "api", se.Stage)
	assert.Equal(t, KindRender, se.Kind)
	assert.Equal(t, []string{"models"}, order)
	assert.Len(t, report.Stages, 1)
	assert.Contains(t, err.Error(), "stage api (render)")
}

func TestFilesystemFailure(t *testing.T) {
	p := New("Orders", nil, Stage{Name: "models", Run: func(context.Context) (int, error) {
		return 0, errors.Wrap(fs.ErrPermission, "failed to create directory models")
	}})

	_, err := p.Run(context.Background())
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindFilesystem, se.Kind)
	assert.True(t, errors.Is(err, fs.ErrPermission))
}

func TestCanceledBeforeStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	p := New("Orders", nil, Stage{Name: "models", Run: func(context.Context) (int, error) {
		ran = true
		return 0, nil
	}})

	_, err := p.Run(ctx)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindCanceled, se.Kind)
	assert.False(t, ran)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"render", &render.Error{Template: "model", Err: errors.New("boom")}, KindRender},
		{"wrapped render", errors.Wrap(&render.Error{Template: "model", Err: errors.New("boom")}, "stage"), KindRender},
		{"canceled", errors.Wrap(context.Canceled, "write"), KindCanceled},
		{"deadline", context.DeadlineExceeded, KindCanceled},
		{"invalid", errors.Wrap(ErrInvalidDeclaration, "typedef Functions"), KindInvalid},
		{"other", errors.New("disk full"), KindFilesystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
