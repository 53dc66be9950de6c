package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

// Rendered is the content produced by a Renderer.
type Rendered struct {
	Subject string
	Body    string
}

// Renderer turns a template id and variables into notification content.
type Renderer interface {
	Render(ctx context.Context, templateID string, vars map[string]any) (Rendered, error)
}

// Template is the source text of a notification template.
type Template struct {
	Subject string `yaml:"subject" json:"subject"`
	Body    string `yaml:"body" json:"body"`
}

// TemplateSource looks up template sources by id.
type TemplateSource interface {
	Template(ctx context.Context, id string) (Template, error)
}

// MapSource is a fixed set of templates. It is safe for concurrent reads.
type MapSource map[string]Template

// Template implements TemplateSource.
func (m MapSource) Template(_ context.Context, id string) (Template, error) {
	t, ok := m[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// TemplateRenderer renders text/template sources. Parsed templates are kept
// in an LRU cache; a missing variable is an error.
type TemplateRenderer struct {
	source TemplateSource
	parsed *cache.LRUCache[string, *compiled]
	funcs  template.FuncMap

	// parse serializes cache misses so each template is parsed once.
	parse sync.Mutex
}

// NewTemplateRenderer creates a renderer that caches up to capacity parsed
// templates. Non-positive capacity means 256.
func NewTemplateRenderer(source TemplateSource, capacity int) *TemplateRenderer {
	if capacity <= 0 {
		capacity = 256
	}
	return &TemplateRenderer{
		source: source,
		parsed: cache.NewLRUCache[string, *compiled](capacity),
		funcs: template.FuncMap{
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"title": func(s string) string {
				if s == "" {
					return s
				}
				return strings.ToUpper(s[:1]) + s[1:]
			},
			"default": func(def, v any) any {
				if v == nil || v == "" {
					return def
				}
				return v
			},
		},
	}
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(ctx context.Context, templateID string, vars map[string]any) (Rendered, error) {
	c, err := r.compiled(ctx, templateID)
	if err != nil {
		return Rendered{}, err
	}

	var out Rendered
	if out.Subject, err = execute(c.subject, vars); err != nil {
		return Rendered{}, fmt.Errorf("%w: %s subject: %w", ErrRenderFailed, templateID, err)
	}
	if out.Body, err = execute(c.body, vars); err != nil {
		return Rendered{}, fmt.Errorf("%w: %s body: %w", ErrRenderFailed, templateID, err)
	}
	return out, nil
}

// Invalidate drops the parsed copy of a template so the next Render reads
// the source again.
func (r *TemplateRenderer) Invalidate(templateID string) {
	r.parsed.Remove(templateID)
}

func (r *TemplateRenderer) compiled(ctx context.Context, id string) (*compiled, error) {
	if c, ok := r.parsed.Get(id); ok {
		return c, nil
	}

	r.parse.Lock()
	defer r.parse.Unlock()
	if c, ok := r.parsed.Get(id); ok {
		return c, nil
	}

	src, err := r.source.Template(ctx, id)
	if err != nil {
		return nil, err
	}

	c := &compiled{}
	if c.subject, err = r.newTemplate(id + ".subject").Parse(src.Subject); err != nil {
		return nil, fmt.Errorf("%w: %s subject: %w", ErrRenderFailed, id, err)
	}
	if c.body, err = r.newTemplate(id + ".body").Parse(src.Body); err != nil {
		return nil, fmt.Errorf("%w: %s body: %w", ErrRenderFailed, id, err)
	}

	r.parsed.Put(id, c)
	return c, nil
}

func (r *TemplateRenderer) newTemplate(name string) *template.Template {
	return template.New(name).Funcs(r.funcs).Option("missingkey=error")
}

func execute(t *template.Template, vars map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
