package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openskills/skillagent/pkg/types/skills"
)

var meetingSummary = skills.Metadata{
	Name:        "meeting-summary",
	Description: "Summarize meeting notes into action items",
	Triggers:    []string{"summarize meeting", "会议总结"},
	Tags:        []string{"notes"},
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "space delimited",
			input: "hello, world_1",
			want:  []string{"hello", "world_1"},
		},
		{
			name:  "dense run",
			input: "帮我总结会议",
			want:  []string{"帮我总结会议", "帮", "帮我", "我", "我总", "总", "总结", "结", "结会", "会", "会议", "议"},
		},
		{
			name:  "mixed run",
			input: "Q1目标",
			want:  []string{"Q1目标", "Q", "Q1", "1", "1目", "目", "目标", "标"},
		},
		{
			name:  "dense and spaced",
			input: "run 会议",
			want:  []string{"run", "会议", "会", "会议", "议"},
		},
		{
			name:  "empty",
			input: "  ,, ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestKeywords(t *testing.T) {
	assert.Equal(t,
		[]string{"summarize", "meeting", "notes", "action", "items"},
		Keywords("Summarize meeting notes into action items"))
	assert.Empty(t, Keywords("a to of in is"))
}

func TestScoreTiers(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantScore float64
		wantBy    string
	}{
		{"exact trigger", "summarize meeting", ExactTriggerScore, "exact trigger: summarize meeting"},
		{"exact trigger trimmed and case-folded", "  Summarize MEETING ", ExactTriggerScore, "exact trigger: summarize meeting"},
		{"partial trigger", "please summarize meeting today", PartialTriggerScore, "partial trigger: summarize meeting"},
		{"trigger words", "meeting please summarize", PartialTriggerScore * 0.9, "trigger words: summarize meeting"},
		{"dense trigger", "帮我做一个会议总结", PartialTriggerScore, "partial trigger: 会议总结"},
		{"name", "meeting summary", NameMatchScore, "name: meeting-summary"},
		{"name words", "summary for the meeting", NameMatchScore * 0.9, "name words: meeting-summary"},
		{"description", "action items", DescriptionScore * (0.5 + 0.5*2.0/5.0), "description keywords: action, items"},
		{"tag", "my notes", TagMatchScore, "tag: notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := Score(tt.query, meetingSummary)
			require.True(t, ok)
			assert.InDelta(t, tt.wantScore, res.Score, 1e-9)
			assert.Equal(t, tt.wantBy, res.MatchedBy)
		})
	}
}

func TestScoreNoMatch(t *testing.T) {
	_, ok := Score("weather forecast", meetingSummary)
	assert.False(t, ok)

	_, ok = Score("   ", meetingSummary)
	assert.False(t, ok)
}

func TestScoreBoundsAndExactDominates(t *testing.T) {
	queries := []string{
		"summarize meeting",
		"summarize meeting notes into action items with meeting summary",
		"notes",
		"meeting-summary",
		"会议总结",
		"x",
	}
	for _, q := range queries {
		res, ok := Score(q, meetingSummary)
		if !ok {
			continue
		}
		assert.GreaterOrEqual(t, res.Score, 0.0, q)
		assert.LessOrEqual(t, res.Score, 1.0, q)
		if q != "summarize meeting" && q != "会议总结" {
			assert.Less(t, res.Score, ExactTriggerScore, q)
		}
	}
}

func TestMatch(t *testing.T) {
	pdf := skills.Metadata{
		Name:        "pdf-tools",
		Description: "Extract text from PDF files",
		Triggers:    []string{"extract pdf"},
		Tags:        []string{"pdf"},
	}
	scheduler := skills.Metadata{
		Name:        "meeting-scheduler",
		Description: "Schedule a meeting",
	}
	candidates := []skills.Metadata{pdf, scheduler, meetingSummary}

	t.Run("ranks by score", func(t *testing.T) {
		results := New().Match("summarize meeting", candidates, 0)
		require.Len(t, results, 2)
		assert.Equal(t, "meeting-summary", results[0].Metadata.Name)
		assert.Equal(t, "meeting-scheduler", results[1].Metadata.Name)
		assert.InDelta(t, 0.375, results[1].Score, 1e-9)
	})

	t.Run("limit", func(t *testing.T) {
		results := New().Match("summarize meeting", candidates, 1)
		require.Len(t, results, 1)
		assert.Equal(t, "meeting-summary", results[0].Metadata.Name)
	})

	t.Run("threshold", func(t *testing.T) {
		results := New(WithMinScore(0.5)).Match("summarize meeting", candidates, 5)
		require.Len(t, results, 1)
		assert.Equal(t, "meeting-summary", results[0].Metadata.Name)
	})

	t.Run("no candidates clear", func(t *testing.T) {
		assert.Empty(t, New().Match("weather forecast", candidates, 5))
	})

	t.Run("best match", func(t *testing.T) {
		best, ok := New().BestMatch("extract pdf please", candidates)
		require.True(t, ok)
		assert.Equal(t, "pdf-tools", best.Metadata.Name)

		_, ok = New().BestMatch("weather", candidates)
		assert.False(t, ok)
	})
}

func TestMatchTiesKeepSourceOrder(t *testing.T) {
	alpha := skills.Metadata{Name: "alpha", Description: "x y", Tags: []string{"foo"}}
	beta := skills.Metadata{Name: "beta", Description: "x y", Tags: []string{"foo"}}

	results := New().Match("foo bar", []skills.Metadata{alpha, beta}, 5)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Metadata.Name)
	assert.Equal(t, "beta", results[1].Metadata.Name)

	results = New().Match("foo bar", []skills.Metadata{beta, alpha}, 5)
	require.Len(t, results, 2)
	assert.Equal(t, "beta", results[0].Metadata.Name)
	assert.Equal(t, "alpha", results[1].Metadata.Name)
}

func TestQuickMatch(t *testing.T) {
	assert.True(t, QuickMatch(meetingSummary, "summarize meeting now"))
	assert.True(t, QuickMatch(meetingSummary, "meeting"))
	assert.True(t, QuickMatch(meetingSummary, "turn these into action items"))
	assert.False(t, QuickMatch(meetingSummary, "weather"))
	assert.False(t, QuickMatch(meetingSummary, ""))
}
