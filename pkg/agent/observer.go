package agent

import (
	"context"

	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

// Observer is notified synchronously of agent side effects. Notifications
// never affect control flow.
type Observer interface {
	SkillActivated(ctx context.Context, skill *skilltypes.Skill)
	ReferenceDisclosed(ctx context.Context, skill, path, content string)
	// ScriptExecuted is called after every auto-executed script. err is
	// non-nil when the script failed.
	ScriptExecuted(ctx context.Context, skill, script, output string, err error)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	OnSkillActivated     func(ctx context.Context, skill *skilltypes.Skill)
	OnReferenceDisclosed func(ctx context.Context, skill, path, content string)
	OnScriptExecuted     func(ctx context.Context, skill, script, output string, err error)
}

func (o ObserverFuncs) SkillActivated(ctx context.Context, skill *skilltypes.Skill) {
	if o.OnSkillActivated != nil {
		o.OnSkillActivated(ctx, skill)
	}
}

func (o ObserverFuncs) ReferenceDisclosed(ctx context.Context, skill, path, content string) {
	if o.OnReferenceDisclosed != nil {
		o.OnReferenceDisclosed(ctx, skill, path, content)
	}
}

func (o ObserverFuncs) ScriptExecuted(ctx context.Context, skill, script, output string, err error) {
	if o.OnScriptExecuted != nil {
		o.OnScriptExecuted(ctx, skill, script, output, err)
	}
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) SkillActivated(context.Context, *skilltypes.Skill)             {}
func (NopObserver) ReferenceDisclosed(context.Context, string, string, string)    {}
func (NopObserver) ScriptExecuted(context.Context, string, string, string, error) {}

// multiObserver fans notifications out in registration order.
type multiObserver []Observer

func (m multiObserver) SkillActivated(ctx context.Context, skill *skilltypes.Skill) {
	for _, o := range m {
		o.SkillActivated(ctx, skill)
	}
}

func (m multiObserver) ReferenceDisclosed(ctx context.Context, skill, path, content string) {
	for _, o := range m {
		o.ReferenceDisclosed(ctx, skill, path, content)
	}
}

func (m multiObserver) ScriptExecuted(ctx context.Context, skill, script, output string, err error) {
	for _, o := range m {
		o.ScriptExecuted(ctx, skill, script, output, err)
	}
}
