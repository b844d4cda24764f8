// Package sysprompt renders the prompt fragments used by the skill agent:
// the active skill block, the skill catalog, and the constrained prompts used
// for skill routing and reference relevance. It also extracts script
// invocation markers from model output.
package sysprompt

import (
	"embed"
	"strings"

	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

//go:embed templates/*
var TemplateFS embed.FS

const (
	ActiveSkillTemplate    = "templates/active_skill.tmpl"
	CatalogTemplate        = "templates/catalog.tmpl"
	CapabilityHintTemplate = "templates/capability_hint.tmpl"
	RoutingTemplate        = "templates/routing.tmpl"
	RelevanceTemplate      = "templates/relevance.tmpl"
)

const (
	// RoutingSystemPrompt accompanies the routing prompt.
	RoutingSystemPrompt = "You are a skill router. Select the most appropriate skill based on the user's intent. Respond with only the skill name or NONE."
	// RelevanceSystemPrompt accompanies the relevance prompt.
	RelevanceSystemPrompt = "You are a precise assistant. Only respond with YES or NO for each reference."

	// NoSkill is the routing answer meaning no skill applies.
	NoSkill = "NONE"

	// MaxQueryChars bounds how much user input is quoted in the routing and
	// relevance prompts.
	MaxQueryChars = 500
	// DefaultHintLimit is the number of skills listed in the idle hint.
	DefaultHintLimit = 5
)

// Options selects which resources are rendered with an active skill.
type Options struct {
	IncludeScripts    bool
	IncludeReferences bool
	// Disclosed restricts rendered references to these paths when non-nil.
	Disclosed map[string]bool
}

// DefaultOptions renders scripts and loaded references.
var DefaultOptions = Options{IncludeScripts: true, IncludeReferences: true}

type scriptView struct {
	Name string
	Hint string
}

type referenceView struct {
	Path    string
	Content string
}

type activeSkillView struct {
	Name        string
	Instruction string
	Scripts     []scriptView
	References  []referenceView
}

type routingView struct {
	Query  string
	Skills []skilltypes.Metadata
}

type relevanceView struct {
	Query      string
	References []*skilltypes.Reference
}

// ActiveSkill renders the block disclosed while skill is active: its
// instruction (or description when none is loaded), one invocation hint per
// script and the body of every reference loaded so far, in declaration order.
func (r *Renderer) ActiveSkill(skill *skilltypes.Skill, opts Options) (string, error) {
	view := activeSkillView{
		Name:        skill.Name(),
		Instruction: skill.Description(),
	}
	if inst, ok := skill.Instruction(); ok && strings.TrimSpace(inst.Content) != "" {
		view.Instruction = inst.Content
	}
	if opts.IncludeScripts {
		for i := range skill.Resources.Scripts {
			script := &skill.Resources.Scripts[i]
			view.Scripts = append(view.Scripts, scriptView{Name: script.Name, Hint: script.InvocationHint()})
		}
	}
	if opts.IncludeReferences {
		for _, ref := range skill.Resources.References {
			if opts.Disclosed != nil && !opts.Disclosed[ref.Path] {
				continue
			}
			if content, ok := ref.Content(); ok {
				view.References = append(view.References, referenceView{Path: ref.Path, Content: content})
			}
		}
	}
	return r.render(ActiveSkillTemplate, view)
}

// Catalog renders the list of every skill with its triggers.
func (r *Renderer) Catalog(metadata []skilltypes.Metadata) (string, error) {
	return r.render(CatalogTemplate, metadata)
}

// CapabilityHint renders a short list of at most limit skills for prompts
// where no skill is active. It returns "" for an empty list.
func (r *Renderer) CapabilityHint(metadata []skilltypes.Metadata, limit int) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	if limit <= 0 {
		limit = DefaultHintLimit
	}
	if len(metadata) > limit {
		metadata = metadata[:limit]
	}
	return r.render(CapabilityHintTemplate, metadata)
}

// Routing renders the prompt asking the model to pick one skill or NONE.
func (r *Renderer) Routing(query string, metadata []skilltypes.Metadata) (string, error) {
	return r.render(RoutingTemplate, routingView{Query: Truncate(query, MaxQueryChars), Skills: metadata})
}

// Relevance renders the prompt asking for a YES/NO verdict per reference.
func (r *Renderer) Relevance(query string, refs []*skilltypes.Reference) (string, error) {
	return r.render(RelevanceTemplate, relevanceView{Query: Truncate(query, MaxQueryChars), References: refs})
}

func (r *Renderer) render(name string, data any) (string, error) {
	out, err := r.RenderPrompt(name, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ActiveSkillPrompt renders with the embedded templates.
func ActiveSkillPrompt(skill *skilltypes.Skill, opts Options) (string, error) {
	return defaultRenderer.ActiveSkill(skill, opts)
}

// Catalog renders with the embedded templates.
func Catalog(metadata []skilltypes.Metadata) (string, error) {
	return defaultRenderer.Catalog(metadata)
}

// CapabilityHint renders with the embedded templates.
func CapabilityHint(metadata []skilltypes.Metadata, limit int) (string, error) {
	return defaultRenderer.CapabilityHint(metadata, limit)
}

// Default returns the renderer over the embedded templates.
func Default() *Renderer {
	return defaultRenderer
}

// System joins the base prompt and fragments, skipping empty ones, with a
// blank line between parts.
func System(base string, fragments ...string) string {
	parts := make([]string, 0, len(fragments)+1)
	for _, p := range append([]string{base}, fragments...) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
