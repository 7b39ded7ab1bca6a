package render

import (
	"strings"
	"testing"
	"testing/fstest"
	"text/template"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"templates/greet.gotmpl":  {Data: []byte(`Hello {{ .Name | shout }}{{ range .Items }} {{ . | upper }}{{ end }}`)},
		"templates/needs.gotmpl":  {Data: []byte(`{{ .Required }}`)},
		"templates/README.md":     {Data: []byte(`not a template`)},
		"templates/sub/x.gotmpl":  {Data: []byte(`ignored`)},
		"templates/broken.gotmpl": {Data: []byte(`{{ .Name }}`)},
	}
}

func newTestRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	r, err := NewTemplateRenderer(testFS(), "templates", template.FuncMap{
		"shout": func(s string) string { return s + "!" },
	})
	require.NoError(t, err)
	return r
}

func TestTemplateRendererRender(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render("greet", Context{"Name": "orders", "Items": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello orders! A B", out)
	assert.Equal(t, []string{"broken", "greet", "needs"}, r.Templates())
}

func TestTemplateRendererMissingKey(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.Render("needs", Context{"Other": 1})
	require.Error(t, err)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "needs", rerr.Template)
	assert.Contains(t, err.Error(), "Required")
}

func TestTemplateRendererUnknownTemplate(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.Render("nope", Context{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTemplate))
}

func TestNewTemplateRendererParseError(t *testing.T) {
	fsys := fstest.MapFS{"t/bad.gotmpl": {Data: []byte(`{{ .Name `)}}
	_, err := NewTemplateRenderer(fsys, "t", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bad.gotmpl"))
}

func TestNewTemplateRendererMissingDir(t *testing.T) {
	_, err := NewTemplateRenderer(fstest.MapFS{}, "templates", nil)
	assert.Error(t, err)
}
