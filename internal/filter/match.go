package filter

import (
	"regexp"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// TextMatcher tests text against one rule value, either as a substring or as
// a regular expression. An empty pattern matches everything.
type TextMatcher struct {
	pattern string
	never   bool
	fold    bool
	re      *regexp.Regexp
	ac      *ahocorasick.AhoCorasick
	err     error
}

// NewTextMatcher compiles pattern once. Substring matching is case-folded
// unless flags.UseCase is set. A pattern that is not a valid regular
// expression falls back to literal substring matching and Err reports why.
func NewTextMatcher(pattern string, flags Flags) *TextMatcher {
	m := &TextMatcher{pattern: pattern, fold: !flags.UseCase}
	if pattern == "" {
		return m
	}

	if flags.UseRegex {
		expr := pattern
		if m.fold {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err == nil {
			m.re = re
			return m
		}
		m.err = err
	}

	needle := pattern
	if m.fold {
		needle = strings.ToLower(needle)
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		MatchKind: ahocorasick.LeftMostLongestMatch,
	})
	automaton := builder.Build([]string{needle})
	m.ac = &automaton
	return m
}

// Match reports whether text contains the pattern.
func (m *TextMatcher) Match(text string) bool {
	switch {
	case m.never:
		return false
	case m.pattern == "":
		return true
	case m.re != nil:
		return m.re.MatchString(text)
	}
	if m.fold {
		text = strings.ToLower(text)
	}
	return len(m.ac.FindAll(text)) > 0
}

// MatchAny reports whether any of texts matches.
func (m *TextMatcher) MatchAny(texts ...string) bool {
	for _, t := range texts {
		if m.Match(t) {
			return true
		}
	}
	return false
}

// Err returns the regular expression compile error, if any.
func (m *TextMatcher) Err() error { return m.err }
