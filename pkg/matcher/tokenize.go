package matcher

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {}, "can": {}, "need": {}, "to": {}, "of": {},
	"in": {}, "for": {}, "on": {}, "with": {}, "at": {}, "by": {}, "from": {}, "as": {}, "into": {}, "and": {}, "or": {},
}

// isDense reports whether r belongs to a script written without spaces
// between words: CJK unified ideographs, kana and Hangul syllables.
func isDense(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3040 && r <= 0x30FF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || isDense(r)
}

// Tokenize splits text into word runs. A run containing any dense-script
// character is emitted whole, followed by each of its characters and each
// adjacent character pair, so substring-style matching works without a
// dictionary. Other runs are emitted as a single token.
func Tokenize(text string) []string {
	var tokens []string
	for _, run := range strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) }) {
		tokens = append(tokens, run)

		runes := []rune(run)
		dense := false
		for _, r := range runes {
			if isDense(r) {
				dense = true
				break
			}
		}
		if !dense {
			continue
		}
		for i := range runes {
			tokens = append(tokens, string(runes[i]))
			if i+1 < len(runes) {
				tokens = append(tokens, string(runes[i:i+2]))
			}
		}
	}
	return tokens
}

// tokenSet returns the distinct tokens of text.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// Keywords extracts the content words of text: lowercased tokens longer than
// two characters that are not stop-words, in first-seen order.
func Keywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(strings.ToLower(text)) {
		if len([]rune(tok)) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func containsAll(set map[string]struct{}, words map[string]struct{}) bool {
	if len(words) == 0 {
		return false
	}
	for w := range words {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
