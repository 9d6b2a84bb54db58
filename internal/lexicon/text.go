package lexicon

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, turns every rune that is not a letter, digit or
// apostrophe into a space and collapses whitespace. Curly apostrophes are
// folded to '.
func Normalize(s string) string {
	return strings.Join(tokenize(s), " ")
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Text is a message prepared for keyword matching. Keywords match whole
// words or whole phrases only: "hate" never matches inside "whatever".
type Text struct {
	raw    string
	tokens []string
}

// NewText prepares raw for matching.
func NewText(raw string) Text {
	return Text{raw: raw, tokens: tokenize(raw)}
}

// Raw returns the original text.
func (t Text) Raw() string { return t.raw }

// Tokens returns the normalized words.
func (t Text) Tokens() []string { return t.tokens }

// Empty reports whether the text has no words.
func (t Text) Empty() bool { return len(t.tokens) == 0 }

// Count returns how many times the keyword or phrase occurs.
func (t Text) Count(keyword string) int {
	kw := tokenize(keyword)
	if len(kw) == 0 || len(kw) > len(t.tokens) {
		return 0
	}
	n := 0
outer:
	for i := 0; i+len(kw) <= len(t.tokens); i++ {
		for j, w := range kw {
			if t.tokens[i+j] != w {
				continue outer
			}
		}
		n++
	}
	return n
}

// Has reports whether the keyword or phrase occurs at least once.
func (t Text) Has(keyword string) bool {
	return t.Count(keyword) > 0
}

// Matches returns the keywords that occur, in keyword order.
func (t Text) Matches(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if t.Has(kw) {
			out = append(out, kw)
		}
	}
	return out
}

// HasAny reports whether any keyword occurs.
func (t Text) HasAny(keywords []string) bool {
	for _, kw := range keywords {
		if t.Has(kw) {
			return true
		}
	}
	return false
}
