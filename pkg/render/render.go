// Package render turns a template identifier and a render context into text.
package render

import (
	"bytes"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
)

// TemplateExt is the file extension of template sources.
const TemplateExt = ".gotmpl"

// Context is the data handed to a template. Each artifact gets its own,
// freshly built context; templates never see state from another artifact.
type Context map[string]any

// Renderer produces text for a template identifier.
type Renderer interface {
	Render(templateID string, data Context) (string, error)
}

// Error reports a template that could not be rendered.
type Error struct {
	Template string
	Err      error
}

func (e *Error) Error() string {
	return "render " + e.Template + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrUnknownTemplate is returned for template IDs that are not in the set.
var ErrUnknownTemplate = errors.New("unknown template")

// TemplateRenderer renders templates parsed once from a filesystem.
// Every template sees sprig's functions plus the given FuncMap.
type TemplateRenderer struct {
	templates map[string]*template.Template
}

// NewTemplateRenderer parses every *.gotmpl file found in dir of fsys.
// The template ID is the file name without the extension.
// Missing context keys are errors at render time.
func NewTemplateRenderer(fsys fs.FS, dir string, funcs template.FuncMap) (*TemplateRenderer, error) {
	funcMap := template.FuncMap{}
	for k, v := range sprig.TxtFuncMap() {
		funcMap[k] = v
	}
	for k, v := range funcs {
		funcMap[k] = v
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read template directory %s", dir)
	}

	r := &TemplateRenderer{templates: map[string]*template.Template{}}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), TemplateExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), TemplateExt)
		src, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read template %s", e.Name())
		}
		tmpl, err := template.New(id).Funcs(funcMap).Option("missingkey=error").Parse(string(src))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse template %s", e.Name())
		}
		r.templates[id] = tmpl
	}
	return r, nil
}

// Render executes the template identified by templateID against data.
func (r *TemplateRenderer) Render(templateID string, data Context) (string, error) {
	tmpl, ok := r.templates[templateID]
	if !ok {
		return "", &Error{Template: templateID, Err: ErrUnknownTemplate}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(data)); err != nil {
		return "", &Error{Template: templateID, Err: err}
	}
	return buf.String(), nil
}

// Templates returns the known template IDs in ascending order.
func (r *TemplateRenderer) Templates() []string {
	out := make([]string, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
