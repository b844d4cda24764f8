// Package agent implements the conversation orchestrator: each turn it
// selects or keeps a skill, discloses the references that apply, delegates
// to the chat transport and runs the script invocations found in the reply.
package agent

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/openskills/skillagent/pkg/matcher"
	"github.com/openskills/skillagent/pkg/runner"
	"github.com/openskills/skillagent/pkg/sysprompt"
	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

// State is the orchestrator state.
type State string

const (
	StateIdle        State = "idle"
	StateSkillActive State = "skill_active"
	// StateAwaitingConfirmation is reserved for hosts that gate script
	// execution on user confirmation. No transition enters it yet.
	StateAwaitingConfirmation State = "awaiting_confirmation"
)

// Repository is the subset of skills.Repository the agent uses.
type Repository interface {
	Discover(ctx context.Context, force bool) ([]skilltypes.Metadata, error)
	Skill(name string) (*skilltypes.Skill, bool)
	Metadata() []skilltypes.Metadata
	LoadInstruction(ctx context.Context, name string) (*skilltypes.Instruction, error)
	LoadReference(ctx context.Context, skill, path string) (string, bool)
	ExecuteScript(ctx context.Context, skill, script string, opts runner.Options) (string, error)
}

// Context is the per-session conversation state.
type Context struct {
	SessionID        string
	Messages         []llmtypes.Message
	ActiveSkill      *skilltypes.Skill
	State            State
	LoadedReferences []string
	// Metadata is free-form host data. It survives Reset.
	Metadata map[string]any
}

// Snapshot returns a copy that shares no slices or maps with c.
func (c *Context) Snapshot() Context {
	return Context{
		SessionID:        c.SessionID,
		Messages:         slices.Clone(c.Messages),
		ActiveSkill:      c.ActiveSkill,
		State:            c.State,
		LoadedReferences: slices.Clone(c.LoadedReferences),
		Metadata:         maps.Clone(c.Metadata),
	}
}

func (c *Context) isLoaded(path string) bool {
	return slices.Contains(c.LoadedReferences, path)
}

func (c *Context) disclosed() map[string]bool {
	out := make(map[string]bool, len(c.LoadedReferences))
	for _, p := range c.LoadedReferences {
		out[p] = true
	}
	return out
}

// Response is the result of one turn.
type Response struct {
	Content string
	// SkillUsed is the skill selected this turn, or the one already active.
	// Empty when no skill is active.
	SkillUsed        string
	ReferencesLoaded []string
	ScriptsExecuted  []string
	Usage            *llmtypes.Usage
	FinishReason     string
}

// Agent orchestrates one conversation. Turns are serialized; separate
// agents may share a Repository.
type Agent struct {
	repo     Repository
	client   llmtypes.Client
	renderer *sysprompt.Renderer
	matcher  *matcher.Matcher
	observer Observer

	baseSystemPrompt string
	autoSelect       bool
	autoReferences   bool
	autoExecute      bool
	matchThreshold   float64
	temperature      float64
	maxTokens        int

	mu          sync.Mutex
	initialized bool
	ctx         Context
	usage       llmtypes.Usage
}

// Option configures an Agent.
type Option func(*Agent)

// WithBaseSystemPrompt sets the prompt that precedes every skill fragment.
func WithBaseSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.baseSystemPrompt = prompt
	}
}

// WithAutoSelect toggles skill selection from user messages. Default true.
func WithAutoSelect(enabled bool) Option {
	return func(a *Agent) {
		a.autoSelect = enabled
	}
}

// WithAutoReferences toggles reference disclosure. Default true.
func WithAutoReferences(enabled bool) Option {
	return func(a *Agent) {
		a.autoReferences = enabled
	}
}

// WithAutoExecute toggles running scripts invoked in replies. Default false.
func WithAutoExecute(enabled bool) Option {
	return func(a *Agent) {
		a.autoExecute = enabled
	}
}

// WithMatchThreshold sets the minimum local match score for selection.
func WithMatchThreshold(threshold float64) Option {
	return func(a *Agent) {
		a.matchThreshold = threshold
	}
}

// WithObserver adds an observer. Observers are notified in the order added.
func WithObserver(o Observer) Option {
	return func(a *Agent) {
		if o == nil {
			return
		}
		if m, ok := a.observer.(multiObserver); ok {
			a.observer = append(m, o)
			return
		}
		a.observer = multiObserver{o}
	}
}

// WithTemperature sets the sampling temperature of reply generation.
func WithTemperature(t float64) Option {
	return func(a *Agent) {
		a.temperature = t
	}
}

// WithMaxTokens caps reply generation. Zero leaves it to the client.
func WithMaxTokens(n int) Option {
	return func(a *Agent) {
		a.maxTokens = n
	}
}

// WithRenderer replaces the prompt renderer.
func WithRenderer(r *sysprompt.Renderer) Option {
	return func(a *Agent) {
		if r != nil {
			a.renderer = r
		}
	}
}

// New creates an agent over repo and client.
func New(repo Repository, client llmtypes.Client, opts ...Option) (*Agent, error) {
	if repo == nil {
		return nil, errors.New("skill repository is required")
	}
	if client == nil {
		return nil, errors.New("chat client is required")
	}

	a := &Agent{
		repo:           repo,
		client:         client,
		renderer:       sysprompt.Default(),
		observer:       NopObserver{},
		autoSelect:     true,
		autoReferences: true,
		matchThreshold: matcher.DefaultMinScore,
		temperature:    llmtypes.DefaultTemperature,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.matcher = matcher.New(matcher.WithMinScore(a.matchThreshold))
	a.ctx = Context{
		SessionID: uuid.NewString(),
		State:     StateIdle,
		Metadata:  map[string]any{},
	}
	return a, nil
}

// Initialize discovers skills and returns how many are available. Chat
// calls it on first use.
func (a *Agent) Initialize(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialize(ctx)
}

func (a *Agent) initialize(ctx context.Context) (int, error) {
	md, err := a.repo.Discover(ctx, false)
	if err != nil {
		return 0, errors.Wrap(err, "failed to discover skills")
	}
	a.initialized = true
	return len(md), nil
}

// Context returns a snapshot of the conversation state.
func (a *Agent) Context() Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx.Snapshot()
}

// SessionID identifies the conversation.
func (a *Agent) SessionID() string {
	return a.ctx.SessionID
}

// SetMetadata stores host data on the conversation.
func (a *Agent) SetMetadata(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx.Metadata[key] = value
}

// Usage returns the token usage accumulated over every call this agent has
// made, including skill routing and reference relevance.
func (a *Agent) Usage() llmtypes.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// ActiveSkill returns the active skill, if any.
func (a *Agent) ActiveSkill() (*skilltypes.Skill, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx.ActiveSkill, a.ctx.ActiveSkill != nil
}

// AvailableSkills returns the names of every known skill.
func (a *Agent) AvailableSkills() []string {
	md := a.repo.Metadata()
	names := make([]string, 0, len(md))
	for _, m := range md {
		names = append(names, m.Name)
	}
	return names
}

// SelectSkill activates name, loading its instruction.
func (a *Agent) SelectSkill(ctx context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selectSkill(ctx, name)
}

// DeselectSkill returns to idle and forgets the references disclosed for
// the previous skill.
func (a *Agent) DeselectSkill() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx.ActiveSkill = nil
	a.ctx.State = StateIdle
	a.ctx.LoadedReferences = nil
}

// Reset clears history, the active skill and disclosed references. Metadata
// and the session ID are kept.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctx = Context{
		SessionID: a.ctx.SessionID,
		State:     StateIdle,
		Metadata:  a.ctx.Metadata,
	}
}

// SystemPrompt renders the system prompt the next reply would be generated
// with.
func (a *Agent) SystemPrompt() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.systemPrompt()
}

func (a *Agent) systemPrompt() (string, error) {
	if skill := a.ctx.ActiveSkill; skill != nil {
		fragment, err := a.renderer.ActiveSkill(skill, sysprompt.Options{
			IncludeScripts:    true,
			IncludeReferences: true,
			Disclosed:         a.ctx.disclosed(),
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to render active skill prompt")
		}
		return sysprompt.System(a.baseSystemPrompt, fragment), nil
	}

	hint, err := a.renderer.CapabilityHint(a.repo.Metadata(), sysprompt.DefaultHintLimit)
	if err != nil {
		return "", errors.Wrap(err, "failed to render capability hint")
	}
	return sysprompt.System(a.baseSystemPrompt, hint), nil
}
