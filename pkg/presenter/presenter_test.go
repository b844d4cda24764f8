package presenter

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

func newTest() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		color    string
		expected ColorMode
	}{
		{"NO_COLOR wins", "1", "always", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "FORCE", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"auto", "", "auto", ColorAuto},
		{"unset", "", "", ColorAuto},
		{"unknown", "", "sometimes", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("SKILLAGENT_COLOR", tt.color)
			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	p, _, errOut := newTest()

	p.Error(errors.New("boom"), "loading skills")
	assert.Equal(t, "[ERROR] loading skills: boom\n", errOut.String())

	errOut.Reset()
	p.Error(errors.New("boom"), "")
	assert.Equal(t, "[ERROR] boom\n", errOut.String())

	errOut.Reset()
	p.Error(nil, "ignored")
	assert.Empty(t, errOut.String())
}

func TestMessages(t *testing.T) {
	p, out, _ := newTest()

	p.Success("done")
	p.Warning("careful")
	p.Info("note")
	p.Event("skill", "meeting-summary")
	p.Section("Skills")
	p.Separator()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "✓ done", lines[0])
	assert.Equal(t, "⚠ careful", lines[1])
	assert.Equal(t, "note", lines[2])
	assert.Equal(t, "[skill] meeting-summary", lines[3])
	assert.Equal(t, "Skills", lines[4])
	assert.Equal(t, "------", lines[5])
	assert.Equal(t, strings.Repeat("-", 60), lines[6])
}

func TestQuietMode(t *testing.T) {
	p, out, errOut := newTest()
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("done")
	p.Warning("careful")
	p.Info("note")
	p.Event("skill", "x")
	p.Section("Skills")
	p.Separator()
	p.Stats(&llmtypes.Usage{InputTokens: 1})
	assert.Empty(t, out.String())

	p.Reply("still shown")
	p.Error(errors.New("also shown"), "")
	assert.Equal(t, "still shown\n", out.String())
	assert.Contains(t, errOut.String(), "also shown")
}

func TestTable(t *testing.T) {
	p, out, _ := newTest()
	p.Table([]string{"NAME", "VERSION"}, [][]string{{"meeting-summary", "1.0.0"}, {"pdf", "2.1.0"}})

	assert.Equal(t, "NAME             VERSION\nmeeting-summary  1.0.0\npdf              2.1.0\n", out.String())
}

func TestStats(t *testing.T) {
	p, out, _ := newTest()
	p.Stats(nil)
	assert.Empty(t, out.String())

	p.Stats(&llmtypes.Usage{InputTokens: 120, OutputTokens: 30, CachedInputTokens: 100})
	assert.Equal(t, "[Usage] Input tokens: 120 | Output tokens: 30 | Cached: 100 | Total: 150\n", out.String())
}

func TestReadLine(t *testing.T) {
	p, out, _ := newTest()
	p.SetInput(strings.NewReader("hello there\n/exit"))

	line, err := p.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", line)

	line, err = p.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "/exit", line)

	_, err = p.ReadLine("> ")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > ", out.String())
}
