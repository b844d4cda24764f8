package skills

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

// DefinitionFileName is the file that marks a directory as a skill.
const DefinitionFileName = "SKILL.md"

const referencesDirName = "references"

var supportedReferenceExts = map[string]bool{
	".md":   true,
	".txt":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
}

// DefinitionParser turns a definition file into a Skill. In metadata-only
// mode the instruction body is not retained.
type DefinitionParser interface {
	ParseFile(path string, metadataOnly bool) (*skilltypes.Skill, error)
}

// Parser is the default DefinitionParser.
type Parser struct {
	frontMatter FrontMatterParser
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithFrontMatterParser replaces the goldmark front-matter reader.
func WithFrontMatterParser(fm FrontMatterParser) ParserOption {
	return func(p *Parser) {
		p.frontMatter = fm
	}
}

// NewParser creates a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{frontMatter: NewGoldmarkFrontMatter()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads and parses the definition at path.
func (p *Parser) ParseFile(path string, metadataOnly bool) (*skilltypes.Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}
	return p.Parse(content, path, metadataOnly)
}

// Parse builds a Skill from definition content. sourcePath may be empty, in
// which case no references directory is scanned.
func (p *Parser) Parse(content []byte, sourcePath string, metadataOnly bool) (*skilltypes.Skill, error) {
	fields, body, err := p.frontMatter.Parse(content)
	if err != nil {
		return nil, err
	}

	md := skilltypes.Metadata{
		Name:        stringField(fields, "name"),
		Description: stringField(fields, "description"),
		Version:     stringField(fields, "version"),
		Triggers:    stringList(fields["triggers"]),
		Tags:        stringList(fields["tags"]),
		Author:      stringField(fields, "author"),
	}
	if md.Version == "" {
		md.Version = skilltypes.DefaultVersion
	}

	resources := skilltypes.Resources{
		References: parseReferences(fields["references"]),
		Scripts:    parseScripts(fields["scripts"]),
		Dependency: parseDependency(fields["dependency"]),
	}
	if sourcePath != "" {
		resources.References = append(resources.References,
			scanReferences(filepath.Join(filepath.Dir(sourcePath), referencesDirName), resources.References)...)
	}

	skill, err := skilltypes.NewSkill(md, resources, sourcePath)
	if err != nil {
		return nil, errors.Wrap(err, "invalid front matter")
	}

	if !metadataOnly {
		skill.SetInstruction(&skilltypes.Instruction{
			Content:    body,
			RawContent: string(content),
		})
	}
	return skill, nil
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// stringList coerces a scalar or a list into a list of non-empty strings,
// dropping entries that are not scalars.
func stringList(v any) []string {
	var items []any
	switch val := v.(type) {
	case nil:
		return []string{}
	case []any:
		items = val
	default:
		items = []any{val}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		s, err := cast.ToStringE(item)
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type referenceEntry struct {
	Path        string `mapstructure:"path"`
	Mode        string `mapstructure:"mode"`
	Condition   string `mapstructure:"condition"`
	Description string `mapstructure:"description"`
}

func parseReferences(v any) []*skilltypes.Reference {
	entries, ok := v.([]any)
	if !ok {
		return nil
	}

	var refs []*skilltypes.Reference
	for _, raw := range entries {
		var entry referenceEntry
		switch val := raw.(type) {
		case string:
			entry.Path = val
		case map[string]any:
			if err := mapstructure.WeakDecode(val, &entry); err != nil {
				continue
			}
		default:
			continue
		}
		if entry.Path = strings.TrimSpace(entry.Path); entry.Path == "" {
			continue
		}
		refs = append(refs, &skilltypes.Reference{
			Path:        entry.Path,
			Condition:   entry.Condition,
			Description: entry.Description,
			Mode:        skilltypes.ParseReferenceMode(entry.Mode),
		})
	}
	return refs
}

type scriptEntry struct {
	Name        string   `mapstructure:"name"`
	Path        string   `mapstructure:"path"`
	Description string   `mapstructure:"description"`
	Args        []string `mapstructure:"args"`
	Timeout     any      `mapstructure:"timeout"`
	Sandbox     *bool    `mapstructure:"sandbox"`
	Outputs     []string `mapstructure:"outputs"`
}

func parseScripts(v any) []skilltypes.Script {
	entries, ok := v.([]any)
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(entries))
	var scripts []skilltypes.Script
	for _, raw := range entries {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		var entry scriptEntry
		if err := mapstructure.WeakDecode(m, &entry); err != nil {
			continue
		}
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Path = strings.TrimSpace(entry.Path)
		if entry.Name == "" || entry.Path == "" || seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true

		scripts = append(scripts, skilltypes.Script{
			Name:        entry.Name,
			Path:        entry.Path,
			Description: entry.Description,
			Args:        nonNil(entry.Args),
			Timeout:     parseTimeout(entry.Timeout),
			Sandbox:     entry.Sandbox == nil || *entry.Sandbox,
			Outputs:     nonNil(entry.Outputs),
		})
	}
	return scripts
}

// parseTimeout accepts a number of seconds or a duration string such as
// "90s". Anything else falls back to the default.
func parseTimeout(v any) time.Duration {
	if s, ok := v.(string); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
			return d
		}
	}
	secs, err := cast.ToFloat64E(v)
	if err != nil || secs <= 0 {
		return skilltypes.DefaultScriptTimeout
	}
	return time.Duration(secs * float64(time.Second))
}

func parseDependency(v any) skilltypes.Dependency {
	var dep skilltypes.Dependency
	m, ok := v.(map[string]any)
	if !ok {
		return dep
	}
	dep.Python = stringList(m["python"])
	dep.System = stringList(m["system"])
	return dep
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// scanReferences walks dir for supported files that are not declared yet.
func scanReferences(dir string, declared []*skilltypes.Reference) []*skilltypes.Reference {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}

	known := make(map[string]bool, len(declared))
	for _, ref := range declared {
		known[path.Clean(filepath.ToSlash(ref.Path))] = true
	}

	matches, err := doublestar.Glob(os.DirFS(dir), "**/*", doublestar.WithFilesOnly())
	if err != nil {
		return nil
	}
	sort.Strings(matches)

	var found []*skilltypes.Reference
	for _, rel := range matches {
		if !supportedReferenceExts[strings.ToLower(path.Ext(rel))] {
			continue
		}
		refPath := path.Join(referencesDirName, rel)
		if known[refPath] {
			continue
		}
		known[refPath] = true
		found = append(found, &skilltypes.Reference{
			Path:        refPath,
			Description: "Auto-discovered: " + path.Base(rel),
			Mode:        skilltypes.ReferenceImplicit,
		})
	}
	return found
}

// findDefinitions lists candidate definition files under root: one per
// immediate subdirectory, followed by one directly in root.
func findDefinitions(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		if isFile(filepath.Join(dir, DefinitionFileName)) {
			files = append(files, filepath.Join(dir, DefinitionFileName))
		}
	}
	if isFile(filepath.Join(root, DefinitionFileName)) {
		files = append(files, filepath.Join(root, DefinitionFileName))
	}
	return files, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
