// Package skills discovers skill definitions on disk and serves them with
// progressive disclosure: metadata is resident after discovery, instructions
// are hydrated on demand and references are read the first time they are
// asked for.
package skills

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openskills/skillagent/pkg/logger"
	"github.com/openskills/skillagent/pkg/matcher"
	"github.com/openskills/skillagent/pkg/runner"
	"github.com/openskills/skillagent/pkg/telemetry"
	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

var (
	// ErrSkillNotFound is returned for names that are not registered.
	ErrSkillNotFound = errors.New("skill not found")
	// ErrScriptNotFound is returned when a skill declares no such script.
	ErrScriptNotFound = errors.New("script not found")
	// ErrScriptFileNotFound is returned when a declared script is missing on disk.
	ErrScriptFileNotFound = errors.New("script file not found")
	// ErrReferenceNotFound is returned when a skill declares no such reference.
	ErrReferenceNotFound = errors.New("reference not found")
)

// ScriptRunner executes a resolved script path.
type ScriptRunner interface {
	Run(ctx context.Context, path string, opts runner.Options) (string, error)
}

// registry is an immutable snapshot. Writers build a new one and swap it in.
type registry struct {
	order       []string
	skills      map[string]*skilltypes.Skill
	diagnostics *multierror.Error
	discovered  bool
}

func newRegistry() *registry {
	return &registry{skills: make(map[string]*skilltypes.Skill)}
}

func (r *registry) clone() *registry {
	next := &registry{
		order:       slices.Clone(r.order),
		skills:      make(map[string]*skilltypes.Skill, len(r.skills)),
		diagnostics: r.diagnostics,
		discovered:  r.discovered,
	}
	for k, v := range r.skills {
		next.skills[k] = v
	}
	return next
}

// add registers s. A skill with a name already present replaces the earlier
// one in place.
func (r *registry) add(s *skilltypes.Skill) {
	if _, exists := r.skills[s.Name()]; !exists {
		r.order = append(r.order, s.Name())
	}
	r.skills[s.Name()] = s
}

func (r *registry) list() []*skilltypes.Skill {
	out := make([]*skilltypes.Skill, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.skills[name])
	}
	return out
}

func (r *registry) metadata() []skilltypes.Metadata {
	out := make([]skilltypes.Metadata, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.skills[name].Metadata())
	}
	return out
}

// Repository owns the set of known skills.
type Repository struct {
	dirs    []string
	allowed []string
	parser  DefinitionParser
	matcher *matcher.Matcher
	runner  ScriptRunner

	mu         sync.Mutex
	registered []*skilltypes.Skill
	current    atomic.Pointer[registry]
}

// Option configures a Repository.
type Option func(*Repository) error

// WithSkillDirs sets the root directories to scan.
func WithSkillDirs(dirs ...string) Option {
	return func(r *Repository) error {
		for _, dir := range dirs {
			abs, err := expandPath(dir)
			if err != nil {
				return err
			}
			r.dirs = append(r.dirs, abs)
		}
		return nil
	}
}

// WithDefaultDirs scans the repo-local and user-global skill directories.
func WithDefaultDirs() Option {
	return func(r *Repository) error {
		dirs, err := DefaultDirs()
		if err != nil {
			return err
		}
		return WithSkillDirs(dirs...)(r)
	}
}

// WithParser replaces the definition parser.
func WithParser(p DefinitionParser) Option {
	return func(r *Repository) error {
		r.parser = p
		return nil
	}
}

// WithMatcher replaces the matcher used by Match.
func WithMatcher(m *matcher.Matcher) Option {
	return func(r *Repository) error {
		r.matcher = m
		return nil
	}
}

// WithScriptRunner replaces the script runner.
func WithScriptRunner(sr ScriptRunner) Option {
	return func(r *Repository) error {
		r.runner = sr
		return nil
	}
}

// WithAllowlist restricts discovery to the named skills. An empty list
// allows everything.
func WithAllowlist(names ...string) Option {
	return func(r *Repository) error {
		r.allowed = names
		return nil
	}
}

// DefaultDirs returns the repo-local and user-global skill roots.
func DefaultDirs() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user home directory")
	}
	return []string{
		filepath.Join(".", ".skillagent", "skills"),
		filepath.Join(homeDir, ".skillagent", "skills"),
	}, nil
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get user home directory")
		}
		p = filepath.Join(homeDir, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", p)
	}
	return abs, nil
}

// NewRepository creates a Repository. Without options it scans the default
// directories.
func NewRepository(opts ...Option) (*Repository, error) {
	r := &Repository{}
	if len(opts) == 0 {
		opts = []Option{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.parser == nil {
		r.parser = NewParser()
	}
	if r.matcher == nil {
		r.matcher = matcher.New()
	}
	if r.runner == nil {
		r.runner = runner.New()
	}
	r.current.Store(newRegistry())
	return r, nil
}

// Dirs returns the configured roots.
func (r *Repository) Dirs() []string {
	return slices.Clone(r.dirs)
}

// Discover scans the configured roots and replaces the registry. Without
// force, the result of an earlier discovery is returned as is. Broken
// definitions are skipped and reported through Diagnostics.
func (r *Repository) Discover(ctx context.Context, force bool) ([]skilltypes.Metadata, error) {
	if reg := r.current.Load(); reg.discovered && !force {
		return reg.metadata(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if reg := r.current.Load(); reg.discovered && !force {
		return reg.metadata(), nil
	}

	var next *registry
	err := telemetry.WithSpan(ctx, "skills.discover", func(ctx context.Context) error {
		next = r.scan(ctx)
		telemetry.SetAttributes(ctx, attribute.Int("skills.count", len(next.order)))
		return nil
	}, attribute.StringSlice("skills.dirs", r.dirs))
	if err != nil {
		return nil, err
	}

	r.current.Store(next)
	logger.G(ctx).WithField("count", len(next.order)).Debug("discovered skills")
	return next.metadata(), nil
}

func (r *Repository) scan(ctx context.Context) *registry {
	next := newRegistry()
	next.discovered = true

	for _, dir := range r.dirs {
		files, err := findDefinitions(dir)
		if err != nil {
			logger.G(ctx).WithField(logger.FieldPath, dir).WithError(err).Debug("skipping skill directory")
			continue
		}
		for _, file := range files {
			skill, err := r.parser.ParseFile(file, true)
			if err != nil {
				next.diagnostics = multierror.Append(next.diagnostics, errors.Wrap(err, file))
				logger.G(ctx).WithField(logger.FieldPath, file).WithError(err).Debug("skipping invalid skill")
				continue
			}
			if !r.isAllowed(skill.Name()) {
				continue
			}
			next.add(skill)
		}
	}

	for _, skill := range r.registered {
		next.add(skill)
	}
	return next
}

func (r *Repository) isAllowed(name string) bool {
	return len(r.allowed) == 0 || slices.Contains(r.allowed, name)
}

// Register adds a skill constructed in code. It survives later discoveries
// and takes precedence over a discovered skill with the same name.
func (r *Repository) Register(skill *skilltypes.Skill) error {
	if skill == nil {
		return errors.New("skill is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.registered = slices.DeleteFunc(r.registered, func(s *skilltypes.Skill) bool {
		return s.Name() == skill.Name()
	})
	r.registered = append(r.registered, skill)

	next := r.current.Load().clone()
	next.add(skill)
	r.current.Store(next)
	return nil
}

// Diagnostics returns the parse failures of the last discovery, or nil.
func (r *Repository) Diagnostics() error {
	return r.current.Load().diagnostics.ErrorOrNil()
}

// Skill looks up a skill by name.
func (r *Repository) Skill(name string) (*skilltypes.Skill, bool) {
	s, ok := r.current.Load().skills[name]
	return s, ok
}

// Skills returns the registered skills in discovery order.
func (r *Repository) Skills() []*skilltypes.Skill {
	return r.current.Load().list()
}

// Metadata returns copies of every registered skill's metadata.
func (r *Repository) Metadata() []skilltypes.Metadata {
	return r.current.Load().metadata()
}

// Len returns the number of registered skills.
func (r *Repository) Len() int {
	return len(r.current.Load().order)
}

// LoadInstruction hydrates the instruction of a registered skill, reading
// its definition again in full mode on first use. Skills constructed in code
// without an instruction yield nil.
func (r *Repository) LoadInstruction(ctx context.Context, name string) (*skilltypes.Instruction, error) {
	skill, ok := r.Skill(name)
	if !ok {
		return nil, errors.Wrapf(ErrSkillNotFound, "%q", name)
	}
	if inst, ok := skill.Instruction(); ok {
		return inst, nil
	}
	if skill.SourcePath == "" {
		return nil, nil
	}

	full, err := r.parser.ParseFile(skill.SourcePath, false)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load instruction for %q", name)
	}
	inst, ok := full.Instruction()
	if !ok {
		return nil, nil
	}
	skill.SetInstruction(inst)

	inst, _ = skill.Instruction()
	logger.G(ctx).WithField(logger.FieldSkill, name).WithField("tokens", inst.EstimateTokens()).Debug("loaded skill instruction")
	return inst, nil
}

// LoadReference returns a reference body, reading it from disk the first
// time. It reports false for an unknown skill, an undeclared reference or a
// file that cannot be read.
func (r *Repository) LoadReference(ctx context.Context, skillName, path string) (string, bool) {
	skill, ok := r.Skill(skillName)
	if !ok {
		return "", false
	}
	ref, ok := skill.Reference(path)
	if !ok {
		return "", false
	}
	if content, ok := ref.Content(); ok {
		return content, true
	}

	full, ok := skill.ResolveReferencePath(ref)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(full)
	if err != nil {
		logger.G(ctx).WithField(logger.FieldSkill, skillName).WithField(logger.FieldPath, full).WithError(err).Debug("failed to read reference")
		return "", false
	}
	return ref.SetContent(string(data)), true
}

// ExecuteScript runs a declared script. The script's declared timeout and
// sandbox flag apply unless opts overrides them.
func (r *Repository) ExecuteScript(ctx context.Context, skillName, scriptName string, opts runner.Options) (string, error) {
	skill, ok := r.Skill(skillName)
	if !ok {
		return "", errors.Wrapf(ErrSkillNotFound, "%q", skillName)
	}
	script, ok := skill.Script(scriptName)
	if !ok {
		return "", errors.Wrapf(ErrScriptNotFound, "%q in skill %q", scriptName, skillName)
	}
	path, ok := skill.ResolveScriptPath(script)
	if !ok || !isFile(path) {
		return "", errors.Wrapf(ErrScriptFileNotFound, "%s", script.Path)
	}

	merged := runner.Options{
		Timeout: script.Timeout,
		Sandbox: runner.Bool(script.Sandbox),
		Input:   opts.Input,
		Args:    opts.Args,
		Env:     opts.Env,
	}
	if opts.Timeout > 0 {
		merged.Timeout = opts.Timeout
	}
	if opts.Sandbox != nil {
		merged.Sandbox = opts.Sandbox
	}

	ctx = logger.WithFields(ctx, map[string]any{
		logger.FieldSkill:  skillName,
		logger.FieldScript: scriptName,
	})
	var output string
	err := telemetry.WithSpan(ctx, "skills.execute_script", func(ctx context.Context) error {
		var err error
		output, err = r.runner.Run(ctx, path, merged)
		return err
	}, telemetry.AttrSkillName.String(skillName), telemetry.AttrScriptName.String(scriptName))
	return output, err
}

// MatchResults scores the registered skills against query.
func (r *Repository) MatchResults(query string, limit int) []matcher.Result {
	return r.matcher.Match(query, r.Metadata(), limit)
}

// Match returns the best matching skills for query, highest score first.
func (r *Repository) Match(query string, limit int) []*skilltypes.Skill {
	reg := r.current.Load()
	results := r.matcher.Match(query, reg.metadata(), limit)

	out := make([]*skilltypes.Skill, 0, len(results))
	for _, res := range results {
		if s, ok := reg.skills[res.Metadata.Name]; ok {
			out = append(out, s)
		}
	}
	return out
}
