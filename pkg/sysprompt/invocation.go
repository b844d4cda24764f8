package sysprompt

import "strings"

const invokePrefix = "[INVOKE:"

// Invocation is a script call requested by the model with a marker of the
// form [INVOKE:name] or [INVOKE:name(raw args)].
type Invocation struct {
	Script string
	Args   string
	// HasArgs distinguishes [INVOKE:x()] from [INVOKE:x].
	HasArgs bool
}

type span struct {
	start, end int
	inv        Invocation
}

// scanInvocations finds every well-formed marker in text. Arguments are
// the balanced-parenthesis run after the name, and the ')' closing it must
// be followed directly by ']'. A rejected marker is skipped one byte at a
// time so a valid marker inside it is still found.
func scanInvocations(text string) []span {
	var spans []span
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], invokePrefix)
		if idx < 0 {
			break
		}
		start := offset + idx
		if sp, ok := parseMarker(text, start); ok {
			spans = append(spans, sp)
			offset = sp.end
			continue
		}
		offset = start + 1
	}
	return spans
}

func parseMarker(text string, start int) (span, bool) {
	i := start + len(invokePrefix)
	nameStart := i
	for i < len(text) && isIdentByte(text[i]) {
		i++
	}
	if i == nameStart || i >= len(text) {
		return span{}, false
	}
	inv := Invocation{Script: text[nameStart:i]}

	switch text[i] {
	case ']':
		return span{start: start, end: i + 1, inv: inv}, true
	case '(':
		closeAt, ok := matchParen(text, i)
		if !ok || closeAt+1 >= len(text) || text[closeAt+1] != ']' {
			return span{}, false
		}
		inv.Args = text[i+1 : closeAt]
		inv.HasArgs = true
		return span{start: start, end: closeAt + 2, inv: inv}, true
	default:
		return span{}, false
	}
}

// matchParen returns the index of the ')' balancing the '(' at open.
func matchParen(text string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func isIdentByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// ExtractInvocations returns the markers in text in order of appearance.
func ExtractInvocations(text string) []Invocation {
	spans := scanInvocations(text)
	if len(spans) == 0 {
		return nil
	}
	out := make([]Invocation, len(spans))
	for i, sp := range spans {
		out[i] = sp.inv
	}
	return out
}

// StripInvocations removes every well-formed marker and trims the result.
func StripInvocations(text string) string {
	spans := scanInvocations(text)
	if len(spans) == 0 {
		return strings.TrimSpace(text)
	}
	var b strings.Builder
	prev := 0
	for _, sp := range spans {
		b.WriteString(text[prev:sp.start])
		prev = sp.end
	}
	b.WriteString(text[prev:])
	return strings.TrimSpace(b.String())
}
