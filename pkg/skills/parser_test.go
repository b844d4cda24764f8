package skills

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

const fullDefinition = `---
name: meeting-summary
description: Summarize meeting notes into action items
version: 2.1.0
author: ops
triggers:
  - summarize meeting
  - 会议总结
tags: [notes, meetings]
references:
  - path: references/template.md
    mode: always
  - path: references/glossary.md
    mode: explicit
    condition: when acronyms appear
    description: Team glossary
  - references/extra.txt
scripts:
  - name: export
    path: scripts/export.sh
    description: Export the summary
    args: [format]
    timeout: 5
    sandbox: false
    outputs: [summary.md]
  - name: notify
    path: scripts/notify.py
dependency:
  python: [requests]
  system: [pandoc]
---

# Meeting Summary

Produce a list of action items.
`

func TestParseFull(t *testing.T) {
	skill, err := NewParser().Parse([]byte(fullDefinition), "", false)
	require.NoError(t, err)

	md := skill.Metadata()
	assert.Equal(t, "meeting-summary", md.Name)
	assert.Equal(t, "Summarize meeting notes into action items", md.Description)
	assert.Equal(t, "2.1.0", md.Version)
	assert.Equal(t, "ops", md.Author)
	assert.Equal(t, []string{"summarize meeting", "会议总结"}, md.Triggers)
	assert.Equal(t, []string{"notes", "meetings"}, md.Tags)

	refs := skill.Resources.References
	require.Len(t, refs, 3)
	assert.Equal(t, skilltypes.ReferenceAlways, refs[0].Mode)
	assert.Equal(t, skilltypes.ReferenceExplicit, refs[1].Mode)
	assert.Equal(t, "when acronyms appear", refs[1].Condition)
	assert.Equal(t, "Team glossary", refs[1].Description)
	assert.Equal(t, "references/extra.txt", refs[2].Path)
	assert.Equal(t, skilltypes.ReferenceImplicit, refs[2].Mode)

	scripts := skill.Resources.Scripts
	require.Len(t, scripts, 2)
	assert.Equal(t, "export", scripts[0].Name)
	assert.Equal(t, []string{"format"}, scripts[0].Args)
	assert.Equal(t, 5*time.Second, scripts[0].Timeout)
	assert.False(t, scripts[0].Sandbox)
	assert.Equal(t, []string{"summary.md"}, scripts[0].Outputs)
	assert.Equal(t, skilltypes.DefaultScriptTimeout, scripts[1].Timeout)
	assert.True(t, scripts[1].Sandbox)
	assert.Empty(t, scripts[1].Args)

	assert.Equal(t, []string{"requests"}, skill.Resources.Dependency.Python)
	assert.Equal(t, []string{"pandoc"}, skill.Resources.Dependency.System)

	inst, ok := skill.Instruction()
	require.True(t, ok)
	assert.Equal(t, "# Meeting Summary\n\nProduce a list of action items.", inst.Content)
	assert.Equal(t, fullDefinition, inst.RawContent)
}

func TestParseMetadataOnly(t *testing.T) {
	skill, err := NewParser().Parse([]byte(fullDefinition), "", true)
	require.NoError(t, err)
	assert.False(t, skill.IsInstructionLoaded())
	assert.Equal(t, "meeting-summary", skill.Name())
}

func TestParseDefaultsAndCoercion(t *testing.T) {
	content := `---
name: tiny
description: Minimal skill
triggers: just one
tags:
  - ok
  - {nested: map}
  - 42
scripts:
  - not-a-map
  - name: ""
    path: x.sh
  - name: run
    path: run.sh
    timeout: soon
  - name: run
    path: other.sh
  - name: slow
    path: slow.sh
    timeout: 2m
references:
  - 17
  - path: ""
---
`
	skill, err := NewParser().Parse([]byte(content), "", false)
	require.NoError(t, err)

	md := skill.Metadata()
	assert.Equal(t, skilltypes.DefaultVersion, md.Version)
	assert.Equal(t, []string{"just one"}, md.Triggers)
	assert.Equal(t, []string{"ok", "42"}, md.Tags)
	assert.Empty(t, md.Author)

	require.Len(t, skill.Resources.Scripts, 2)
	assert.Equal(t, "run.sh", skill.Resources.Scripts[0].Path)
	assert.Equal(t, skilltypes.DefaultScriptTimeout, skill.Resources.Scripts[0].Timeout)
	assert.Equal(t, 2*time.Minute, skill.Resources.Scripts[1].Timeout)
	assert.Empty(t, skill.Resources.References)

	inst, ok := skill.Instruction()
	require.True(t, ok)
	assert.Empty(t, inst.Content)
}

func TestParseMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing description",
			content: "---\nname: only-name\n---\nbody",
			wantErr: "skill description is required",
		},
		{
			name:    "missing name",
			content: "---\ndescription: nameless\n---\nbody",
			wantErr: "skill name is required",
		},
		{
			name:    "no front matter",
			content: "# Just markdown",
			wantErr: "skill name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse([]byte(tt.content), "", false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := NewParser().Parse([]byte("---\nname: [unterminated\n---\n"), "", false)
	assert.Error(t, err)
}

func TestParseFileScansReferences(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "SKILL.md"), `---
name: with-refs
description: Skill with a references directory
references:
  - path: references/guide.md
    mode: always
---
body`)
	writeFile(t, filepath.Join(dir, "references", "guide.md"), "guide")
	writeFile(t, filepath.Join(dir, "references", "nested", "Data.JSON"), "{}")
	writeFile(t, filepath.Join(dir, "references", "notes.txt"), "notes")
	writeFile(t, filepath.Join(dir, "references", "image.png"), "png")

	skill, err := NewParser().ParseFile(filepath.Join(dir, "SKILL.md"), true)
	require.NoError(t, err)

	var paths []string
	for _, ref := range skill.Resources.References {
		paths = append(paths, ref.Path)
	}
	assert.Equal(t, []string{"references/guide.md", "references/nested/Data.JSON", "references/notes.txt"}, paths)

	auto := skill.Resources.References[1]
	assert.Equal(t, "Auto-discovered: Data.JSON", auto.Description)
	assert.Equal(t, skilltypes.ReferenceImplicit, auto.Mode)
	assert.Equal(t, skilltypes.ReferenceAlways, skill.Resources.References[0].Mode)
}

func TestParseFileMissing(t *testing.T) {
	_, err := NewParser().ParseFile(filepath.Join(t.TempDir(), "SKILL.md"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read skill file")
}

type staticFrontMatter struct {
	fields map[string]any
	body   string
}

func (s staticFrontMatter) Parse([]byte) (map[string]any, string, error) {
	return s.fields, s.body, nil
}

func TestParserWithCustomFrontMatter(t *testing.T) {
	p := NewParser(WithFrontMatterParser(staticFrontMatter{
		fields: map[string]any{"name": "custom", "description": "from a custom reader"},
		body:   "hello",
	}))
	skill, err := p.Parse(nil, "", false)
	require.NoError(t, err)
	assert.Equal(t, "custom", skill.Name())
	inst, _ := skill.Instruction()
	assert.Equal(t, "hello", inst.Content)
}

func TestGoldmarkFrontMatterLeadingWhitespace(t *testing.T) {
	fields, body, err := NewGoldmarkFrontMatter().Parse([]byte("\r\n\n---\r\nname: x\r\ndescription: y\r\n---\r\n\r\nBody\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", fields["name"])
	assert.Equal(t, "Body", body)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
