package skills

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// ReferenceMode controls when a reference is disclosed to the model.
type ReferenceMode string

const (
	// ReferenceAlways references are disclosed as soon as the skill is active.
	ReferenceAlways ReferenceMode = "always"
	// ReferenceExplicit references are disclosed when judged relevant.
	ReferenceExplicit ReferenceMode = "explicit"
	// ReferenceImplicit is the default mode, also judged for relevance.
	ReferenceImplicit ReferenceMode = "implicit"
)

// ParseReferenceMode maps a declared mode onto a ReferenceMode. Anything
// unrecognised is treated as implicit.
func ParseReferenceMode(s string) ReferenceMode {
	switch ReferenceMode(strings.ToLower(strings.TrimSpace(s))) {
	case ReferenceAlways:
		return ReferenceAlways
	case ReferenceExplicit:
		return ReferenceExplicit
	default:
		return ReferenceImplicit
	}
}

// Reference is a supplementary document attached to a skill.
type Reference struct {
	Path        string
	Condition   string
	Description string
	Mode        ReferenceMode

	content atomic.Pointer[string]
}

// Content returns the cached content once it has been loaded.
func (r *Reference) Content() (string, bool) {
	c := r.content.Load()
	if c == nil {
		return "", false
	}
	return *c, true
}

// IsLoaded reports whether the content cache is populated.
func (r *Reference) IsLoaded() bool {
	return r.content.Load() != nil
}

// SetContent caches content the first time it is called and returns the
// cached value, which may come from an earlier call.
func (r *Reference) SetContent(content string) string {
	r.content.CompareAndSwap(nil, &content)
	return *r.content.Load()
}

// DefaultScriptTimeout applies when a script does not declare one.
const DefaultScriptTimeout = 30 * time.Second

// Script is an executable action bundled with a skill.
type Script struct {
	Name        string        `json:"name" yaml:"name"`
	Path        string        `json:"path" yaml:"path"`
	Description string        `json:"description" yaml:"description"`
	Args        []string      `json:"args" yaml:"args"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	Sandbox     bool          `json:"sandbox" yaml:"sandbox"`
	Outputs     []string      `json:"outputs" yaml:"outputs"`
}

// InvocationHint renders a one-line sentence telling the model when and how
// to invoke the script.
func (s *Script) InvocationHint() string {
	hint := fmt.Sprintf("To %s, invoke the '%s' script", strings.ToLower(s.Description), s.Name)
	if len(s.Args) > 0 {
		hint += " with arguments: " + strings.Join(s.Args, ", ")
	}
	return hint + "."
}

// Dependency lists external requirements. The core never enforces them.
type Dependency struct {
	Python []string `json:"python" yaml:"python"`
	System []string `json:"system" yaml:"system"`
}

// HasDependencies reports whether anything is declared.
func (d Dependency) HasDependencies() bool {
	return len(d.Python) > 0 || len(d.System) > 0
}

// PipInstallCommand returns the pip command installing the python
// dependencies, or "" when there are none.
func (d Dependency) PipInstallCommand() string {
	if len(d.Python) == 0 {
		return ""
	}
	quoted := make([]string, len(d.Python))
	for i, p := range d.Python {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return "pip install " + strings.Join(quoted, " ")
}

// Resources is the third, conditionally loaded layer.
type Resources struct {
	References []*Reference
	Scripts    []Script
	Dependency Dependency
}
