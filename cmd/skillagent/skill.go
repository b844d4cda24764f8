package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openskills/skillagent/pkg/agent"
	"github.com/openskills/skillagent/pkg/matcher"
	"github.com/openskills/skillagent/pkg/presenter"
	"github.com/openskills/skillagent/pkg/runner"
	"github.com/openskills/skillagent/pkg/skills"
	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

type SkillShowConfig struct {
	Format string
}

func NewSkillShowConfig() *SkillShowConfig {
	return &SkillShowConfig{Format: "text"}
}

type SkillRunConfig struct {
	Input     string
	Args      []string
	NoSandbox bool
}

func NewSkillRunConfig() *SkillRunConfig {
	return &SkillRunConfig{}
}

type SkillInitConfig struct {
	Dir         string
	Description string
	Triggers    []string
}

func NewSkillInitConfig() *SkillInitConfig {
	return &SkillInitConfig{Dir: "."}
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Inspect and manage skills",
	Long:  `List, inspect, match, run, validate and scaffold skills.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered skills",
	Run: func(cmd *cobra.Command, _ []string) {
		repo := discoverOrExit(cmd.Context())
		listSkillsCmd(repo)
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a skill with its instruction and resources",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getSkillShowConfigFromFlags(cmd)
		repo := discoverOrExit(cmd.Context())
		if err := showSkillCmd(cmd.Context(), repo, args[0], config); err != nil {
			presenter.Error(err, "Failed to show skill")
			os.Exit(1)
		}
	},
}

var skillMatchCmd = &cobra.Command{
	Use:   "match <query>",
	Short: "Rank skills against a query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		repo := discoverOrExit(cmd.Context())
		matchSkillsCmd(repo, strings.Join(args, " "), limit)
	},
}

var skillRunCmd = &cobra.Command{
	Use:   "run <skill> <script>",
	Short: "Run a script bundled with a skill",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		config := getSkillRunConfigFromFlags(cmd)
		repo := discoverOrExit(cmd.Context())
		output, err := repo.ExecuteScript(cmd.Context(), args[0], args[1], runner.Options{
			Input:   config.Input,
			Args:    config.Args,
			Sandbox: runner.Bool(!config.NoSandbox),
		})
		if output != "" {
			fmt.Print(output)
			if !strings.HasSuffix(output, "\n") {
				fmt.Println()
			}
		}
		if err != nil {
			presenter.Error(err, "Script failed")
			os.Exit(1)
		}
	},
}

var skillValidateCmd = &cobra.Command{
	Use:   "validate [path...]",
	Short: "Validate skill definitions",
	Long: `Validate skill definitions. Each path may be a SKILL.md file, a skill
directory or a directory holding several skills. Without paths the configured
skill directories are validated.`,
	Run: func(_ *cobra.Command, args []string) {
		paths := args
		if len(paths) == 0 {
			repo, err := agent.RepositoryFromViper()
			if err != nil {
				presenter.Error(err, "Failed to load configuration")
				os.Exit(1)
			}
			paths = existingDirs(repo.Dirs())
		}
		if !validateSkillsCmd(presenter.Default(), paths) {
			os.Exit(1)
		}
	},
}

var skillInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Scaffold a new skill",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getSkillInitConfigFromFlags(cmd)
		path, err := scaffoldSkill(args[0], config)
		if err != nil {
			presenter.Error(err, "Failed to create skill")
			os.Exit(1)
		}
		presenter.Success("Created " + path)
	},
}

func init() {
	showDefaults := NewSkillShowConfig()
	skillShowCmd.Flags().StringP("output", "o", showDefaults.Format, "Output format (text, yaml or json)")

	skillMatchCmd.Flags().Int("limit", matcher.DefaultLimit, "Maximum number of results")

	runDefaults := NewSkillRunConfig()
	skillRunCmd.Flags().String("input", runDefaults.Input, "Text written to the script's stdin (- reads stdin)")
	skillRunCmd.Flags().StringSlice("arg", runDefaults.Args, "Argument passed to the script (repeatable)")
	skillRunCmd.Flags().Bool("no-sandbox", runDefaults.NoSandbox, "Pass the full environment to the script")

	initDefaults := NewSkillInitConfig()
	skillInitCmd.Flags().String("dir", initDefaults.Dir, "Directory to create the skill in")
	skillInitCmd.Flags().String("description", initDefaults.Description, "Skill description")
	skillInitCmd.Flags().StringSlice("trigger", initDefaults.Triggers, "Trigger phrase (repeatable)")

	skillCmd.AddCommand(skillListCmd, skillShowCmd, skillMatchCmd, skillRunCmd, skillValidateCmd, skillInitCmd)
}

func getSkillShowConfigFromFlags(cmd *cobra.Command) *SkillShowConfig {
	config := NewSkillShowConfig()
	if format, err := cmd.Flags().GetString("output"); err == nil {
		config.Format = strings.ToLower(format)
	}
	return config
}

func getSkillRunConfigFromFlags(cmd *cobra.Command) *SkillRunConfig {
	config := NewSkillRunConfig()
	config.Input, _ = cmd.Flags().GetString("input")
	config.Args, _ = cmd.Flags().GetStringSlice("arg")
	config.NoSandbox, _ = cmd.Flags().GetBool("no-sandbox")
	if config.Input == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			presenter.Error(err, "Failed to read stdin")
			os.Exit(1)
		}
		config.Input = string(data)
	}
	return config
}

func getSkillInitConfigFromFlags(cmd *cobra.Command) *SkillInitConfig {
	config := NewSkillInitConfig()
	config.Dir, _ = cmd.Flags().GetString("dir")
	config.Description, _ = cmd.Flags().GetString("description")
	config.Triggers, _ = cmd.Flags().GetStringSlice("trigger")
	return config
}

func discoverOrExit(ctx context.Context) *skills.Repository {
	repo, err := agent.RepositoryFromViper()
	if err != nil {
		presenter.Error(err, "Failed to load configuration")
		os.Exit(1)
	}
	if _, err := repo.Discover(ctx, false); err != nil {
		presenter.Error(err, "Failed to discover skills")
		os.Exit(1)
	}
	if diag := repo.Diagnostics(); diag != nil {
		presenter.Warning(diag.Error())
	}
	return repo
}

func listSkillsCmd(repo *skills.Repository) {
	list := repo.Skills()
	if len(list) == 0 {
		presenter.Info("No skills found in " + strings.Join(repo.Dirs(), ", "))
		return
	}

	rows := make([][]string, 0, len(list))
	for _, s := range list {
		summary := s.Summary()
		rows = append(rows, []string{
			summary.Name,
			summary.Version,
			strconv.Itoa(summary.ReferenceCount),
			strconv.Itoa(summary.ScriptCount),
			truncate(summary.Description, 60),
		})
	}
	presenter.Default().Table([]string{"NAME", "VERSION", "REFS", "SCRIPTS", "DESCRIPTION"}, rows)
}

// skillView is the serialized form of `skill show`.
type skillView struct {
	skilltypes.Summary `json:",inline" yaml:",inline"`
	Tags               []string        `json:"tags,omitempty" yaml:"tags,omitempty"`
	References         []referenceView `json:"references,omitempty" yaml:"references,omitempty"`
	Scripts            []scriptView    `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	Python             []string        `json:"python,omitempty" yaml:"python,omitempty"`
	System             []string        `json:"system,omitempty" yaml:"system,omitempty"`
	Instruction        string          `json:"instruction,omitempty" yaml:"instruction,omitempty"`
}

type referenceView struct {
	Path      string `json:"path" yaml:"path"`
	Mode      string `json:"mode" yaml:"mode"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

type scriptView struct {
	Name        string   `json:"name" yaml:"name"`
	Path        string   `json:"path" yaml:"path"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty"`
}

func newSkillView(s *skilltypes.Skill, inst *skilltypes.Instruction) skillView {
	v := skillView{
		Summary: s.Summary(),
		Tags:    s.Metadata().Tags,
		Python:  s.Resources.Dependency.Python,
		System:  s.Resources.Dependency.System,
	}
	if inst != nil {
		v.Instruction = inst.Content
	}
	for _, ref := range s.Resources.References {
		v.References = append(v.References, referenceView{Path: ref.Path, Mode: string(ref.Mode), Condition: ref.Condition})
	}
	for _, sc := range s.Resources.Scripts {
		v.Scripts = append(v.Scripts, scriptView{Name: sc.Name, Path: sc.Path, Description: sc.Description, Args: sc.Args})
	}
	return v
}

func showSkillCmd(ctx context.Context, repo *skills.Repository, name string, config *SkillShowConfig) error {
	inst, err := repo.LoadInstruction(ctx, name)
	if err != nil {
		return err
	}
	s, _ := repo.Skill(name)
	view := newSkillView(s, inst)

	switch config.Format {
	case "yaml":
		out, err := yaml.Marshal(view)
		if err != nil {
			return errors.Wrap(err, "failed to encode skill")
		}
		fmt.Print(string(out))
	case "json":
		out, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode skill")
		}
		fmt.Println(string(out))
	case "text", "":
		printSkill(view)
	default:
		return errors.Errorf("unknown output format %q", config.Format)
	}
	return nil
}

func printSkill(v skillView) {
	p := presenter.Default()
	p.Section(v.Name + " " + v.Version)
	p.Info(v.Description)
	if len(v.Triggers) > 0 {
		p.Info("Triggers: " + strings.Join(v.Triggers, ", "))
	}
	if len(v.References) > 0 {
		p.Info("")
		rows := make([][]string, 0, len(v.References))
		for _, r := range v.References {
			rows = append(rows, []string{r.Path, r.Mode, r.Condition})
		}
		p.Table([]string{"REFERENCE", "MODE", "CONDITION"}, rows)
	}
	if len(v.Scripts) > 0 {
		p.Info("")
		rows := make([][]string, 0, len(v.Scripts))
		for _, s := range v.Scripts {
			rows = append(rows, []string{s.Name, s.Path, strings.Join(s.Args, ", ")})
		}
		p.Table([]string{"SCRIPT", "PATH", "ARGS"}, rows)
	}
	if v.Instruction != "" {
		p.Info("")
		p.Separator()
		p.Reply(v.Instruction)
	}
}

func matchSkillsCmd(repo *skills.Repository, query string, limit int) {
	results := repo.MatchResults(query, limit)
	if len(results) == 0 {
		presenter.Info("No skill matches " + strconv.Quote(query))
		return
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Metadata.Name, strconv.FormatFloat(r.Score, 'f', 2, 64), r.MatchedBy})
	}
	presenter.Default().Table([]string{"NAME", "SCORE", "MATCHED BY"}, rows)
}

// validateSkillsCmd reports every problem found under paths and whether
// all definitions were valid.
func validateSkillsCmd(p *presenter.TerminalPresenter, paths []string) bool {
	if len(paths) == 0 {
		p.Warning("No skill directories to validate")
		return true
	}
	valid, err := skills.Validate(paths...)
	for _, s := range valid {
		p.Success(s.Name() + " (" + s.SourcePath + ")")
	}
	if err == nil {
		return true
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			p.Error(e, "")
		}
	} else {
		p.Error(err, "")
	}
	return false
}

func existingDirs(dirs []string) []string {
	var out []string
	for _, d := range dirs {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			out = append(out, d)
		}
	}
	return out
}

// skillFrontMatter is the front matter written by `skill init`.
type skillFrontMatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Triggers    []string `yaml:"triggers,omitempty"`
}

const skillBodyTemplate = `
# %s

Describe step by step how to perform this skill.

## References

Place supporting documents in references/. They are disclosed to the model
when relevant to the request.
`

// scaffoldSkill creates <dir>/<name>/SKILL.md with references/ and scripts/
// directories and returns the definition path. An existing skill is never
// overwritten.
func scaffoldSkill(name string, config *SkillInitConfig) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.Errorf("invalid skill name %q", name)
	}
	description := config.Description
	if description == "" {
		description = "Describe when this skill should be used"
	}

	dir := filepath.Join(config.Dir, name)
	path := filepath.Join(dir, skills.DefinitionFileName)
	if _, err := os.Stat(path); err == nil {
		return "", errors.Errorf("%s already exists", path)
	}
	for _, sub := range []string{"references", "scripts"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", errors.Wrapf(err, "failed to create %s", sub)
		}
	}

	fm, err := yaml.Marshal(skillFrontMatter{
		Name:        name,
		Description: description,
		Version:     skilltypes.DefaultVersion,
		Triggers:    config.Triggers,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode front matter")
	}
	content := "---\n" + string(fm) + "---\n" + fmt.Sprintf(skillBodyTemplate, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write skill definition")
	}
	return path, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
