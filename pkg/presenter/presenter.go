// Package presenter writes user-facing CLI output: status lines, section
// headers, skill tables and token usage, with color and quiet-mode support.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

// ColorMode controls colored output.
type ColorMode int

const (
	// ColorAuto lets the color package detect terminal support.
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// TerminalPresenter writes to a terminal or any pair of writers.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       *bufio.Reader
	colorMode   ColorMode
	quiet       bool
}

// New creates a presenter over stdout, stderr and stdin.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a presenter over custom writers.
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}
	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		input:       bufio.NewReader(os.Stdin),
		colorMode:   colorMode,
	}
}

// SetInput replaces the reader used by ReadLine.
func (p *TerminalPresenter) SetInput(r io.Reader) {
	p.input = bufio.NewReader(r)
}

// detectColorMode reads NO_COLOR and SKILLAGENT_COLOR.
func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch strings.ToLower(os.Getenv("SKILLAGENT_COLOR")) {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error writes err to the error output. A nil error prints nothing.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
		return
	}
	c.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
}

func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section writes an underlined header.
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}
	c := color.New(color.Bold)
	c.Fprintf(p.output, "%s\n", title)
	c.Fprintf(p.output, "%s\n", strings.Repeat("-", len([]rune(title))))
}

// Reply writes an assistant reply. Replies are printed in quiet mode too.
func (p *TerminalPresenter) Reply(content string) {
	fmt.Fprintf(p.output, "%s\n", strings.TrimRight(content, "\n"))
}

// Event writes a dimmed side-effect line such as a skill activation.
func (p *TerminalPresenter) Event(kind, detail string) {
	if p.quiet {
		return
	}
	color.New(color.FgMagenta).Fprintf(p.output, "[%s] %s\n", kind, detail)
}

// Table writes rows aligned in columns under header.
func (p *TerminalPresenter) Table(header []string, rows [][]string) {
	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	if len(header) > 0 {
		fmt.Fprintln(w, strings.Join(header, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// ReadLine shows prompt and reads one line of input. It returns io.EOF when
// the input is exhausted.
func (p *TerminalPresenter) ReadLine(prompt string) (string, error) {
	color.New(color.FgCyan, color.Bold).Fprint(p.output, prompt)
	line, err := p.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Stats writes token usage.
func (p *TerminalPresenter) Stats(usage *llmtypes.Usage) {
	if p.quiet || usage == nil {
		return
	}
	color.New(color.FgCyan, color.Bold).Fprintf(p.output,
		"[Usage] Input tokens: %d | Output tokens: %d | Cached: %d | Total: %d\n",
		usage.InputTokens, usage.OutputTokens, usage.CachedInputTokens, usage.TotalTokens())
}

func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter = New()

// Default returns the shared stdout presenter.
func Default() *TerminalPresenter {
	return defaultPresenter
}

func Error(err error, context string) { defaultPresenter.Error(err, context) }
func Success(message string)         { defaultPresenter.Success(message) }
func Warning(message string)         { defaultPresenter.Warning(message) }
func Info(message string)            { defaultPresenter.Info(message) }
func Section(title string)           { defaultPresenter.Section(title) }
func Separator()                     { defaultPresenter.Separator() }
func SetQuiet(quiet bool)            { defaultPresenter.SetQuiet(quiet) }
