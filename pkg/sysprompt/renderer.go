package sysprompt

import (
	"io/fs"
	"slices"
	"sort"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// promptTemplates is the closed set of templates a Renderer serves.
var promptTemplates = []string{
	ActiveSkillTemplate,
	CatalogTemplate,
	CapabilityHintTemplate,
	RoutingTemplate,
	RelevanceTemplate,
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

// Renderer executes the prompt templates. Each prompt is parsed on its own,
// so an override can only replace one of the known prompts.
type Renderer struct {
	templates map[string]*template.Template
	parseErr  error
}

var defaultRenderer = NewRenderer(TemplateFS)

// NewRenderer parses the prompt templates from fsys.
func NewRenderer(fsys fs.FS) *Renderer {
	return NewRendererWithTemplateOverride(fsys, nil)
}

// NewRendererWithTemplateOverride parses the prompt templates, taking the
// source of any prompt listed in overrides (keyed by template path, e.g.
// templates/catalog.tmpl) from there instead of fsys. Parse failures are
// reported by every render call.
func NewRendererWithTemplateOverride(fsys fs.FS, overrides map[string]string) *Renderer {
	r := &Renderer{templates: make(map[string]*template.Template, len(promptTemplates))}
	r.parseErr = r.parse(fsys, overrides)
	return r
}

func (r *Renderer) parse(fsys fs.FS, overrides map[string]string) error {
	if unknown := unknownOverrides(overrides); len(unknown) > 0 {
		return errors.Errorf("unknown prompt templates: %s", strings.Join(unknown, ", "))
	}

	for _, name := range promptTemplates {
		source, ok := overrides[name]
		if !ok {
			raw, err := fs.ReadFile(fsys, name)
			if err != nil {
				return errors.Wrapf(err, "failed to read template %s", name)
			}
			source = string(raw)
		}

		tmpl, err := template.New(name).Funcs(templateFuncs).Parse(source)
		if err != nil {
			return errors.Wrapf(err, "failed to parse template %s", name)
		}
		r.templates[name] = tmpl
	}
	return nil
}

func unknownOverrides(overrides map[string]string) []string {
	var unknown []string
	for name := range overrides {
		if !slices.Contains(promptTemplates, name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// RenderPrompt executes the template registered under name.
func (r *Renderer) RenderPrompt(name string, data any) (string, error) {
	if r.parseErr != nil {
		return "", errors.Wrap(r.parseErr, "failed to initialize templates")
	}
	tmpl, ok := r.templates[name]
	if !ok {
		return "", errors.Errorf("template %s not found", name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "failed to execute template %s", name)
	}
	return sb.String(), nil
}
