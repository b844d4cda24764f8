package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/openskills/skillagent/pkg/agent"
	"github.com/openskills/skillagent/pkg/logger"
	"github.com/openskills/skillagent/pkg/presenter"
	"github.com/openskills/skillagent/pkg/skills"
	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

type ChatConfig struct {
	AutoExecute    bool
	NoAutoSelect   bool
	NoReferences   bool
	Watch          bool
	Skill          string
	SystemPrompt   string
	Temperature    float64
	HasTemperature bool
	ShowUsage      bool
	Quiet          bool
}

func NewChatConfig() *ChatConfig {
	return &ChatConfig{
		ShowUsage: true,
	}
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the skill agent",
	Long: `Chat with the skill agent. With a message argument a single turn is run
and the reply printed. Without one an interactive session starts.

Interactive commands:
  /skill <name>  activate a skill
  /deselect      deactivate the current skill
  /skills        list available skills
  /reset         clear the conversation
  /exit          quit`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		config := getChatConfigFromFlags(cmd)
		p := presenter.Default()
		p.SetQuiet(config.Quiet)

		a, stop, err := buildAgent(ctx, config, p)
		if err != nil {
			presenter.Error(err, "Failed to start agent")
			os.Exit(1)
		}
		defer stop()

		if config.Skill != "" {
			if err := a.SelectSkill(ctx, config.Skill); err != nil {
				presenter.Error(err, "Failed to activate skill")
				os.Exit(1)
			}
		}

		if len(args) > 0 {
			if err := runTurn(ctx, a, p, strings.Join(args, " "), config); err != nil {
				presenter.Error(err, "Chat failed")
				os.Exit(1)
			}
			return
		}

		if err := runREPL(ctx, a, p, config); err != nil {
			presenter.Error(err, "Chat session failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewChatConfig()
	chatCmd.Flags().Bool("auto-execute", defaults.AutoExecute, "Run scripts the model invokes")
	chatCmd.Flags().Bool("no-auto-select", defaults.NoAutoSelect, "Disable automatic skill selection")
	chatCmd.Flags().Bool("no-references", defaults.NoReferences, "Disable automatic reference disclosure")
	chatCmd.Flags().Bool("watch", defaults.Watch, "Re-discover skills when skill directories change")
	chatCmd.Flags().StringP("skill", "s", defaults.Skill, "Activate a skill before the first message")
	chatCmd.Flags().String("system-prompt", defaults.SystemPrompt, "Base system prompt")
	chatCmd.Flags().Float64("temperature", defaults.Temperature, "Reply temperature (overrides config)")
	chatCmd.Flags().Bool("usage", defaults.ShowUsage, "Show token usage after each reply")
	chatCmd.Flags().BoolP("quiet", "q", defaults.Quiet, "Print replies only")
}

func getChatConfigFromFlags(cmd *cobra.Command) *ChatConfig {
	config := NewChatConfig()
	config.AutoExecute, _ = cmd.Flags().GetBool("auto-execute")
	config.NoAutoSelect, _ = cmd.Flags().GetBool("no-auto-select")
	config.NoReferences, _ = cmd.Flags().GetBool("no-references")
	config.Watch, _ = cmd.Flags().GetBool("watch")
	config.Skill, _ = cmd.Flags().GetString("skill")
	config.SystemPrompt, _ = cmd.Flags().GetString("system-prompt")
	config.ShowUsage, _ = cmd.Flags().GetBool("usage")
	config.Quiet, _ = cmd.Flags().GetBool("quiet")
	if cmd.Flags().Changed("temperature") {
		config.Temperature, _ = cmd.Flags().GetFloat64("temperature")
		config.HasTemperature = true
	}
	return config
}

// agentOptions maps the chat flags to agent options. Flags only override
// configuration when they were set.
func agentOptions(config *ChatConfig, p *presenter.TerminalPresenter) []agent.Option {
	opts := []agent.Option{agent.WithObserver(eventObserver(p))}
	if config.AutoExecute {
		opts = append(opts, agent.WithAutoExecute(true))
	}
	if config.NoAutoSelect {
		opts = append(opts, agent.WithAutoSelect(false))
	}
	if config.NoReferences {
		opts = append(opts, agent.WithAutoReferences(false))
	}
	if config.SystemPrompt != "" {
		opts = append(opts, agent.WithBaseSystemPrompt(config.SystemPrompt))
	}
	if config.HasTemperature {
		opts = append(opts, agent.WithTemperature(config.Temperature))
	}
	return opts
}

func eventObserver(p *presenter.TerminalPresenter) agent.Observer {
	return agent.ObserverFuncs{
		OnSkillActivated: func(_ context.Context, skill *skilltypes.Skill) {
			p.Event("skill", skill.Name())
		},
		OnReferenceDisclosed: func(_ context.Context, skill, path, _ string) {
			p.Event("reference", skill+"/"+path)
		},
		OnScriptExecuted: func(_ context.Context, skill, script, _ string, err error) {
			if err != nil {
				p.Event("script", fmt.Sprintf("%s/%s failed: %v", skill, script, err))
				return
			}
			p.Event("script", skill+"/"+script)
		},
	}
}

// buildAgent creates the agent and, when requested, a watcher over its
// skill directories. stop releases the watcher.
func buildAgent(ctx context.Context, config *ChatConfig, p *presenter.TerminalPresenter) (*agent.Agent, func(), error) {
	repo, err := agent.RepositoryFromViper()
	if err != nil {
		return nil, nil, err
	}
	a, err := agent.NewFromConfigWithRepository(ctx, repo, agentOptions(config, p)...)
	if err != nil {
		return nil, nil, err
	}
	if len(a.AvailableSkills()) == 0 {
		p.Warning("No skills found in " + strings.Join(repo.Dirs(), ", "))
	}

	if !config.Watch {
		return a, func() {}, nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := skills.NewWatcher(repo, skills.WithOnReload(func(md []skilltypes.Metadata, err error) {
		if err != nil {
			logger.G(watchCtx).WithError(err).Warn("skill reload failed")
			return
		}
		p.Event("reload", fmt.Sprintf("%d skills", len(md)))
	}))
	if err := w.Start(watchCtx); err != nil {
		cancel()
		return nil, nil, errors.Wrap(err, "failed to watch skill directories")
	}
	return a, func() {
		cancel()
		<-w.Done()
	}, nil
}

func runTurn(ctx context.Context, a *agent.Agent, p *presenter.TerminalPresenter, message string, config *ChatConfig) error {
	resp, err := a.Chat(ctx, message)
	if err != nil {
		return err
	}
	p.Reply(resp.Content)
	printTurnSummary(p, resp)
	if config.ShowUsage {
		p.Stats(resp.Usage)
	}
	return nil
}

// printTurnSummary reports the skill, references and scripts a turn used.
// Turns without an active skill print nothing.
func printTurnSummary(p *presenter.TerminalPresenter, resp *agent.Response) {
	if resp.SkillUsed == "" {
		return
	}
	parts := []string{"skill: " + resp.SkillUsed}
	if len(resp.ReferencesLoaded) > 0 {
		parts = append(parts, "references: "+strings.Join(resp.ReferencesLoaded, ", "))
	}
	if len(resp.ScriptsExecuted) > 0 {
		parts = append(parts, "scripts: "+strings.Join(resp.ScriptsExecuted, ", "))
	}
	p.Event("turn", strings.Join(parts, "; "))
}

func runREPL(ctx context.Context, a *agent.Agent, p *presenter.TerminalPresenter, config *ChatConfig) error {
	p.Section("skillagent chat")
	p.Info("Type /exit to quit, /skills to list skills.")

	for {
		line, err := p.ReadLine("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read input")
		}
		if line == "" {
			continue
		}

		cmd, arg, isCommand := parseREPLCommand(line)
		if !isCommand {
			if err := runTurn(ctx, a, p, line, config); err != nil {
				p.Error(err, "Chat failed")
			}
			continue
		}

		switch cmd {
		case "exit", "quit":
			usage := a.Usage()
			p.Stats(&usage)
			return nil
		case "reset":
			a.Reset()
			p.Success("Conversation cleared")
		case "deselect":
			a.DeselectSkill()
			p.Success("Skill deactivated")
		case "skills":
			for _, name := range a.AvailableSkills() {
				p.Info("  " + name)
			}
		case "skill":
			if arg == "" {
				if s, ok := a.ActiveSkill(); ok {
					p.Info("Active skill: " + s.Name())
				} else {
					p.Info("No active skill")
				}
				continue
			}
			if err := a.SelectSkill(ctx, arg); err != nil {
				p.Error(err, "Failed to activate skill")
			}
		default:
			p.Warning("Unknown command /" + cmd)
		}
	}
}

// parseREPLCommand splits "/name arg" input. Lines not starting with a
// slash are messages.
func parseREPLCommand(line string) (cmd, arg string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return "", "", false
	}
	cmd, arg, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg), true
}
