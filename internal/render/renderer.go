package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

// Template names.
const (
	PageTemplate = "index.html"
	AppTemplate  = "app"
	ListTemplate = "list"
	FormTemplate = "form"
)

// Renderer executes the page and partial templates. It is safe for
// concurrent use.
type Renderer struct {
	t *template.Template
}

// NewRenderer parses templates/*.html from fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	t, err := template.New("").ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, name := range []string{PageTemplate, AppTemplate, ListTemplate, FormTemplate} {
		if t.Lookup(name) == nil {
			return nil, fmt.Errorf("parse templates: missing %q", name)
		}
	}
	return &Renderer{t: t}, nil
}

// Render executes the named template into w. Output is buffered so a
// template error never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, name string, data PageData) error {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderSwap renders the fragment htmx targets followed by each of oob as an
// out-of-band swap.
func (r *Renderer) RenderSwap(target string, oob []string, data PageData) (string, error) {
	var buf bytes.Buffer
	data.OOB = false
	if err := r.Render(&buf, target, data); err != nil {
		return "", err
	}
	data.OOB = true
	for _, name := range oob {
		if err := r.Render(&buf, name, data); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// RenderString is Render into a string.
func (r *Renderer) RenderString(name string, data PageData) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
