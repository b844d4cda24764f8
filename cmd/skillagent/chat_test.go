package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/openskills/skillagent/pkg/agent"
	"github.com/openskills/skillagent/pkg/presenter"
)

func TestParseREPLCommand(t *testing.T) {
	tests := []struct {
		input     string
		cmd       string
		arg       string
		isCommand bool
	}{
		{"/exit", "exit", "", true},
		{"/skill meeting-summary", "skill", "meeting-summary", true},
		{"  /SKILL   pdf  ", "skill", "pdf", true},
		{"/reset", "reset", "", true},
		{"/", "", "", false},
		{"hello /skill", "", "", false},
		{"summarize this meeting", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, arg, ok := parseREPLCommand(tt.input)
			assert.Equal(t, tt.isCommand, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestAgentOptionsOnlyOverrideSetFlags(t *testing.T) {
	p := presenter.NewWithOptions(&bytes.Buffer{}, &bytes.Buffer{}, presenter.ColorNever)

	assert.Len(t, agentOptions(NewChatConfig(), p), 1)

	config := NewChatConfig()
	config.AutoExecute = true
	config.NoAutoSelect = true
	config.NoReferences = true
	config.SystemPrompt = "You are helpful."
	config.HasTemperature = true
	assert.Len(t, agentOptions(config, p), 6)
}

func TestEventObserver(t *testing.T) {
	var out bytes.Buffer
	p := presenter.NewWithOptions(&out, &bytes.Buffer{}, presenter.ColorNever)
	o := eventObserver(p)
	ctx := context.Background()

	o.ReferenceDisclosed(ctx, "meeting-summary", "references/template.md", "body")
	o.ScriptExecuted(ctx, "meeting-summary", "export", "ok", nil)
	o.ScriptExecuted(ctx, "meeting-summary", "export", "", errors.New("exit status 1"))

	assert.Equal(t,
		"[reference] meeting-summary/references/template.md\n"+
			"[script] meeting-summary/export\n"+
			"[script] meeting-summary/export failed: exit status 1\n",
		out.String())
}

func TestPrintTurnSummary(t *testing.T) {
	tests := []struct {
		name string
		resp *agent.Response
		want string
	}{
		{
			name: "no active skill",
			resp: &agent.Response{Content: "hi"},
			want: "",
		},
		{
			name: "already active skill",
			resp: &agent.Response{SkillUsed: "meeting-summary"},
			want: "[turn] skill: meeting-summary\n",
		},
		{
			name: "references and scripts",
			resp: &agent.Response{
				SkillUsed:        "meeting-summary",
				ReferencesLoaded: []string{"references/template.md", "references/style.md"},
				ScriptsExecuted:  []string{"export"},
			},
			want: "[turn] skill: meeting-summary; references: references/template.md, references/style.md; scripts: export\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := presenter.NewWithOptions(&out, &bytes.Buffer{}, presenter.ColorNever)
			printTurnSummary(p, tt.resp)
			assert.Equal(t, tt.want, out.String())
		})
	}
}
