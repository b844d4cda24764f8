package sysprompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractInvocations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Invocation
	}{
		{
			name: "with arguments",
			text: "Running it now [INVOKE:foo(bar baz)]",
			want: []Invocation{{Script: "foo", Args: "bar baz", HasArgs: true}},
		},
		{
			name: "without arguments",
			text: "[INVOKE:foo]",
			want: []Invocation{{Script: "foo"}},
		},
		{
			name: "empty arguments",
			text: "[INVOKE:foo()]",
			want: []Invocation{{Script: "foo", HasArgs: true}},
		},
		{
			name: "several in order",
			text: "first [INVOKE:a_1] then [INVOKE:B2(x\ny)] done",
			want: []Invocation{{Script: "a_1"}, {Script: "B2", Args: "x\ny", HasArgs: true}},
		},
		{
			name: "unbalanced parenthesis",
			text: "[INVOKE:foo(bar]",
			want: nil,
		},
		{
			name: "closing paren not followed by bracket",
			text: "[INVOKE:foo(bar) ]",
			want: nil,
		},
		{
			name: "invalid identifier",
			text: "[INVOKE:foo-bar] [INVOKE:] [INVOKE:foo",
			want: nil,
		},
		{
			name: "malformed then valid",
			text: "[INVOKE:bad [INVOKE:good]",
			want: []Invocation{{Script: "good"}},
		},
		{
			name: "nested balanced arguments",
			text: "[INVOKE:calc(f(x))]",
			want: []Invocation{{Script: "calc", Args: "f(x)", HasArgs: true}},
		},
		{
			name: "nested unbalanced arguments",
			text: "[INVOKE:foo(a(b)]",
			want: nil,
		},
		{
			name: "unterminated arguments then valid marker",
			text: "[INVOKE:foo(a] then [INVOKE:bar(x)]",
			want: []Invocation{{Script: "bar", Args: "x", HasArgs: true}},
		},
		{
			name: "no markers",
			text: "plain reply",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractInvocations(tt.text))
		})
	}
}

func TestExtractInvocationsIsRepeatable(t *testing.T) {
	text := "[INVOKE:foo(1)] and [INVOKE:bar]"
	first := ExtractInvocations(text)
	second := ExtractInvocations(text)
	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

func TestStripInvocations(t *testing.T) {
	assert.Equal(t, "Here is the data:\n\n done", StripInvocations("Here is the data:\n[INVOKE:export]\n done  "))
	assert.Equal(t, "a  b", StripInvocations("a [INVOKE:x(1)] b"))
	assert.Equal(t, "keep [INVOKE:foo(bar]", StripInvocations("keep [INVOKE:foo(bar]"))
	assert.Equal(t, "[INVOKE:foo(a] then", StripInvocations("[INVOKE:foo(a] then [INVOKE:bar(x)]"))
	assert.Empty(t, StripInvocations("[INVOKE:only]"))
}
