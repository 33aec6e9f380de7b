// Package templates renders the short texts shown to patients.
package templates

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

// Renderer compiles templates once and renders them with strict missing-key
// semantics.
type Renderer struct {
	mu    sync.Mutex
	cache map[string]compiled
}

type compiled struct {
	text string
	tmpl *template.Template
}

// NewRenderer returns an empty renderer.
func NewRenderer() *Renderer {
	return &Renderer{cache: make(map[string]compiled)}
}

// Render executes tmpl under name. A name is compiled on first use and
// recompiled whenever its text changes.
func (r *Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("templates: template text required")
	}
	t, err := r.compile(name, tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) compile(name, tmpl string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		r.cache = make(map[string]compiled)
	}
	if c, ok := r.cache[name]; ok && c.text == tmpl {
		return c.tmpl, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("templates: parse %s: %w", name, err)
	}
	r.cache[name] = compiled{text: tmpl, tmpl: t}
	return t, nil
}
