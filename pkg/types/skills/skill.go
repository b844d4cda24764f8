// Package skills defines the progressive-disclosure skill model: metadata that
// is always resident, an instruction body loaded on activation, and resources
// (references and scripts) loaded only when they become relevant.
package skills

import (
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// DefaultVersion is used when a definition does not declare a version.
const DefaultVersion = "1.0.0"

// Metadata is the always-loaded first layer of a skill.
type Metadata struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Version     string   `json:"version" yaml:"version"`
	Triggers    []string `json:"triggers" yaml:"triggers"`
	Tags        []string `json:"tags" yaml:"tags"`
	Author      string   `json:"author,omitempty" yaml:"author,omitempty"`
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	m.Triggers = slices.Clone(m.Triggers)
	m.Tags = slices.Clone(m.Tags)
	return m
}

// Validate checks the fields every skill must carry.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return errors.New("skill name is required")
	}
	if m.Description == "" {
		return errors.New("skill description is required")
	}
	return nil
}

// Instruction is the second layer, hydrated when the skill is activated.
type Instruction struct {
	Content    string
	RawContent string
}

// EstimateTokens gives a rough token count for the instruction body.
func (i *Instruction) EstimateTokens() int {
	return len(i.Content) / 4
}

// Skill is the unit of discovery, activation and disclosure.
type Skill struct {
	metadata    Metadata
	instruction atomic.Pointer[Instruction]

	Resources Resources
	// SourcePath is the definition file the skill was parsed from. It is
	// empty for skills constructed in code.
	SourcePath string
}

// NewSkill builds a skill, rejecting metadata without a name or description.
func NewSkill(metadata Metadata, resources Resources, sourcePath string) (*Skill, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	if metadata.Version == "" {
		metadata.Version = DefaultVersion
	}
	return &Skill{
		metadata:   metadata.Clone(),
		Resources:  resources,
		SourcePath: sourcePath,
	}, nil
}

// Name returns the unique skill name.
func (s *Skill) Name() string { return s.metadata.Name }

// Description returns the skill description.
func (s *Skill) Description() string { return s.metadata.Description }

// Metadata returns a copy of the skill metadata.
func (s *Skill) Metadata() Metadata { return s.metadata.Clone() }

// Instruction returns the hydrated instruction, if any.
func (s *Skill) Instruction() (*Instruction, bool) {
	inst := s.instruction.Load()
	return inst, inst != nil
}

// SetInstruction stores the instruction unless one is already present. It
// reports whether the value was stored.
func (s *Skill) SetInstruction(inst *Instruction) bool {
	if inst == nil {
		return false
	}
	return s.instruction.CompareAndSwap(nil, inst)
}

// IsInstructionLoaded reports whether layer two has been hydrated.
func (s *Skill) IsInstructionLoaded() bool {
	return s.instruction.Load() != nil
}

// BaseDir is the directory holding the definition file.
func (s *Skill) BaseDir() string {
	if s.SourcePath == "" {
		return ""
	}
	return filepath.Dir(s.SourcePath)
}

// resolve joins rel onto the skill directory. Absolute paths and paths
// escaping the directory are rejected.
func (s *Skill) resolve(rel string) (string, bool) {
	base := s.BaseDir()
	if base == "" || rel == "" {
		return "", false
	}
	if filepath.IsAbs(rel) {
		return "", false
	}
	p := filepath.Join(base, filepath.FromSlash(rel))
	if r, err := filepath.Rel(base, p); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

// ResolveReferencePath maps a reference path onto the filesystem.
func (s *Skill) ResolveReferencePath(ref *Reference) (string, bool) {
	return s.resolve(ref.Path)
}

// ResolveScriptPath maps a script path onto the filesystem.
func (s *Skill) ResolveScriptPath(script *Script) (string, bool) {
	return s.resolve(script.Path)
}

// Reference looks up a declared reference by path.
func (s *Skill) Reference(path string) (*Reference, bool) {
	for _, ref := range s.Resources.References {
		if ref.Path == path {
			return ref, true
		}
	}
	return nil, false
}

// Script looks up a declared script by name.
func (s *Skill) Script(name string) (*Script, bool) {
	for i := range s.Resources.Scripts {
		if s.Resources.Scripts[i].Name == name {
			return &s.Resources.Scripts[i], true
		}
	}
	return nil, false
}

// Summary is a flat description of the skill for listings.
type Summary struct {
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description" yaml:"description"`
	Version        string   `json:"version" yaml:"version"`
	Triggers       []string `json:"triggers" yaml:"triggers"`
	HasInstruction bool     `json:"has_instruction" yaml:"has_instruction"`
	ReferenceCount int      `json:"reference_count" yaml:"reference_count"`
	ScriptCount    int      `json:"script_count" yaml:"script_count"`
	Source         string   `json:"source,omitempty" yaml:"source,omitempty"`
}

// Summary returns a listing view of the skill.
func (s *Skill) Summary() Summary {
	return Summary{
		Name:           s.metadata.Name,
		Description:    s.metadata.Description,
		Version:        s.metadata.Version,
		Triggers:       slices.Clone(s.metadata.Triggers),
		HasInstruction: s.IsInstructionLoaded(),
		ReferenceCount: len(s.Resources.References),
		ScriptCount:    len(s.Resources.Scripts),
		Source:         s.SourcePath,
	}
}
