package agent

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openskills/skillagent/pkg/logger"
	"github.com/openskills/skillagent/pkg/runner"
	"github.com/openskills/skillagent/pkg/skills"
	"github.com/openskills/skillagent/pkg/sysprompt"
	"github.com/openskills/skillagent/pkg/telemetry"
	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

const (
	routingMaxTokens   = 50
	relevanceMaxTokens = 100
)

type chatOptions struct {
	temperature *float64
	maxTokens   int
	model       string
}

// ChatOption adjusts a single turn.
type ChatOption func(*chatOptions)

// WithTurnTemperature overrides the reply temperature for one turn.
func WithTurnTemperature(t float64) ChatOption {
	return func(o *chatOptions) {
		o.temperature = llmtypes.Float(t)
	}
}

// WithTurnMaxTokens overrides the reply token cap for one turn.
func WithTurnMaxTokens(n int) ChatOption {
	return func(o *chatOptions) {
		o.maxTokens = n
	}
}

// WithTurnModel overrides the model for one turn's reply.
func WithTurnModel(model string) ChatOption {
	return func(o *chatOptions) {
		o.model = model
	}
}

// Chat runs one conversation turn. Failures of skill routing, reference
// relevance and auto-executed scripts degrade silently; a failure of the
// reply call is returned and the user message stays in the history.
func (a *Agent) Chat(ctx context.Context, content string, opts ...ChatOption) (*Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var resp *Response
	err := telemetry.WithSpan(ctx, "agent.chat", func(ctx context.Context) error {
		var err error
		resp, err = a.chat(ctx, content, opts...)
		return err
	}, telemetry.AttrSessionID.String(a.ctx.SessionID))
	return resp, err
}

func (a *Agent) chat(ctx context.Context, content string, opts ...ChatOption) (*Response, error) {
	ctx = logger.WithFields(ctx, map[string]any{logger.FieldSession: a.ctx.SessionID})

	turn := chatOptions{temperature: llmtypes.Float(a.temperature), maxTokens: a.maxTokens}
	for _, opt := range opts {
		opt(&turn)
	}

	if !a.initialized {
		if _, err := a.initialize(ctx); err != nil {
			return nil, err
		}
	}

	a.ctx.Messages = append(a.ctx.Messages, llmtypes.UserMessage(content))

	var selected string
	if a.autoSelect && a.ctx.ActiveSkill == nil {
		selected = a.autoSelectSkill(ctx, content)
	}

	var disclosed []string
	if a.autoReferences && a.ctx.ActiveSkill != nil {
		disclosed = a.discloseReferences(ctx, content)
	}

	system, err := a.systemPrompt()
	if err != nil {
		return nil, err
	}

	reply, err := a.client.Chat(ctx, llmtypes.Request{
		Messages:    slices.Clone(a.ctx.Messages),
		System:      system,
		Temperature: turn.temperature,
		MaxTokens:   turn.maxTokens,
		Model:       turn.model,
	})
	if err != nil {
		return nil, errors.Wrap(err, "chat request failed")
	}
	a.usage.Add(reply.Usage)
	a.ctx.Messages = append(a.ctx.Messages, llmtypes.AssistantMessage(reply.Content))

	var executed []string
	if a.autoExecute && a.ctx.ActiveSkill != nil {
		executed = a.runInvocations(ctx, reply.Content)
	}

	out := &Response{
		Content:          reply.Content,
		SkillUsed:        selected,
		ReferencesLoaded: disclosed,
		ScriptsExecuted:  executed,
		Usage:            reply.Usage,
		FinishReason:     reply.FinishReason,
	}
	if out.SkillUsed == "" && a.ctx.ActiveSkill != nil {
		out.SkillUsed = a.ctx.ActiveSkill.Name()
	}
	telemetry.SetAttributes(ctx,
		attribute.String("skill.used", out.SkillUsed),
		attribute.Int("references.loaded", len(disclosed)),
		attribute.Int("scripts.executed", len(executed)),
		attribute.Int("usage.total_tokens", reply.Usage.TotalTokens()),
	)
	return out, nil
}

// autoSelectSkill activates the best local match, falling back to asking
// the model. It returns the activated skill name or "".
func (a *Agent) autoSelectSkill(ctx context.Context, content string) string {
	metadata := a.repo.Metadata()
	name := ""
	if best, ok := a.matcher.BestMatch(content, metadata); ok {
		name = best.Metadata.Name
		logger.G(ctx).WithField(logger.FieldSkill, name).WithField("score", best.Score).WithField("matched_by", best.MatchedBy).Debug("matched skill locally")
	} else {
		name = a.routeSkill(ctx, content, metadata)
	}
	if name == "" {
		return ""
	}

	if err := a.selectSkill(ctx, name); err != nil {
		logger.G(ctx).WithField(logger.FieldSkill, name).WithError(err).Debug("failed to activate skill")
		return ""
	}
	return name
}

// routeSkill asks the model to pick a skill name from the catalog. Any
// failure or unknown answer means no skill; the call is never retried.
func (a *Agent) routeSkill(ctx context.Context, content string, metadata []skilltypes.Metadata) string {
	if len(metadata) == 0 {
		return ""
	}

	prompt, err := a.renderer.Routing(content, metadata)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("failed to render routing prompt")
		return ""
	}
	resp, err := a.client.Chat(ctx, llmtypes.Request{
		Messages:    []llmtypes.Message{llmtypes.UserMessage(prompt)},
		System:      sysprompt.RoutingSystemPrompt,
		Temperature: llmtypes.Float(0),
		MaxTokens:   routingMaxTokens,
		NoRetry:     true,
	})
	if err != nil {
		logger.G(ctx).WithError(err).Debug("skill routing failed")
		return ""
	}
	a.usage.Add(resp.Usage)

	answer := strings.Trim(strings.TrimSpace(resp.Content), `"'`)
	for _, m := range metadata {
		if strings.EqualFold(m.Name, answer) {
			return m.Name
		}
	}
	logger.G(ctx).WithField("answer", answer).Debug("skill routing returned no known skill")
	return ""
}

func (a *Agent) selectSkill(ctx context.Context, name string) error {
	return telemetry.WithSpan(ctx, "agent.select_skill", func(ctx context.Context) error {
		skill, ok := a.repo.Skill(name)
		if !ok {
			return errors.Wrapf(skills.ErrSkillNotFound, "%q", name)
		}
		if _, err := a.repo.LoadInstruction(ctx, name); err != nil {
			return err
		}

		a.ctx.ActiveSkill = skill
		a.ctx.State = StateSkillActive
		logger.G(ctx).WithField(logger.FieldSkill, name).Info("skill activated")
		a.observer.SkillActivated(ctx, skill)
		return nil
	}, telemetry.AttrSkillName.String(name))
}

// discloseReferences loads every pending ALWAYS reference, then asks the
// model which of the remaining ones apply to content. It returns the paths
// disclosed this turn.
func (a *Agent) discloseReferences(ctx context.Context, content string) []string {
	var disclosed []string
	telemetry.WithSpanFunc(ctx, "agent.disclose_references", func(ctx context.Context) {
		skill := a.ctx.ActiveSkill

		var pending []*skilltypes.Reference
		for _, ref := range skill.Resources.References {
			if a.ctx.isLoaded(ref.Path) {
				continue
			}
			if ref.Mode != skilltypes.ReferenceAlways {
				pending = append(pending, ref)
				continue
			}
			if a.disclose(ctx, skill, ref) {
				disclosed = append(disclosed, ref.Path)
			}
		}

		if len(pending) == 0 {
			return
		}
		verdicts := a.evaluateRelevance(ctx, content, pending)
		for i, ref := range pending {
			if verdicts[i] && a.disclose(ctx, skill, ref) {
				disclosed = append(disclosed, ref.Path)
			}
		}
		telemetry.SetAttributes(ctx, attribute.Int("references.disclosed", len(disclosed)))
	}, telemetry.AttrSkillName.String(a.ctx.ActiveSkill.Name()))
	return disclosed
}

func (a *Agent) disclose(ctx context.Context, skill *skilltypes.Skill, ref *skilltypes.Reference) bool {
	body, ok := a.repo.LoadReference(ctx, skill.Name(), ref.Path)
	if !ok {
		logger.G(ctx).WithField(logger.FieldSkill, skill.Name()).WithField(logger.FieldPath, ref.Path).Debug("reference unavailable")
		return false
	}
	// The repository may have re-discovered the skill since it was
	// activated; the prompt renders the active instance.
	body = ref.SetContent(body)
	a.ctx.LoadedReferences = append(a.ctx.LoadedReferences, ref.Path)
	a.observer.ReferenceDisclosed(ctx, skill.Name(), ref.Path, body)
	return true
}

// evaluateRelevance returns one verdict per reference. A transport failure
// or a missing answer line means not relevant.
func (a *Agent) evaluateRelevance(ctx context.Context, content string, refs []*skilltypes.Reference) []bool {
	verdicts := make([]bool, len(refs))

	prompt, err := a.renderer.Relevance(content, refs)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("failed to render relevance prompt")
		return verdicts
	}
	resp, err := a.client.Chat(ctx, llmtypes.Request{
		Messages:    []llmtypes.Message{llmtypes.UserMessage(prompt)},
		System:      sysprompt.RelevanceSystemPrompt,
		Temperature: llmtypes.Float(0),
		MaxTokens:   relevanceMaxTokens,
		NoRetry:     true,
	})
	if err != nil {
		logger.G(ctx).WithError(err).Debug("reference relevance evaluation failed")
		return verdicts
	}
	a.usage.Add(resp.Usage)

	return parseRelevance(resp.Content, len(refs))
}

// parseRelevance reads "N. YES" / "N: no" lines. The first line for an
// index decides it; indexes without a line are false.
func parseRelevance(answer string, n int) []bool {
	verdicts := make([]bool, n)
	lines := strings.Split(strings.TrimSpace(answer), "\n")
	for i := range verdicts {
		dot := strconv.Itoa(i+1) + "."
		colon := strconv.Itoa(i+1) + ":"
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, dot) || strings.HasPrefix(line, colon) {
				verdicts[i] = strings.Contains(strings.ToLower(line), "yes")
				break
			}
		}
	}
	return verdicts
}

// runInvocations executes the scripts invoked in reply, in order. A marker
// with arguments sends them as stdin; otherwise stdin is the reply without
// markers. Failures are reported to the observer and skipped.
func (a *Agent) runInvocations(ctx context.Context, reply string) []string {
	invocations := sysprompt.ExtractInvocations(reply)
	if len(invocations) == 0 {
		return nil
	}

	skill := a.ctx.ActiveSkill.Name()
	stripped := sysprompt.StripInvocations(reply)

	var executed []string
	for _, inv := range invocations {
		input := inv.Args
		if input == "" {
			input = stripped
		}

		output, err := a.repo.ExecuteScript(ctx, skill, inv.Script, runner.Options{Input: input})
		a.observer.ScriptExecuted(ctx, skill, inv.Script, output, err)
		if err != nil {
			logger.G(ctx).WithField(logger.FieldSkill, skill).WithField(logger.FieldScript, inv.Script).WithError(err).Debug("auto-executed script failed")
			continue
		}
		executed = append(executed, inv.Script)
	}
	return executed
}
