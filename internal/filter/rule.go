package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpggio/lineage/internal/genealogy"
)

// Flags modify how a rule compares text values.
type Flags struct {
	UseRegex bool
	UseCase  bool
}

// Rule is a parametrized predicate over records of one namespace.
//
// A rule is driven through Prepare, any number of Apply calls, then Reset.
// Apply never fails: lookup misses and unresolved parameters evaluate to
// false.
type Rule interface {
	// Name is the stable identifier the rule is registered and persisted under.
	Name() string
	Labels() []string
	Values() []string
	// SetValues replaces the bound values. The count must equal len(Labels()).
	SetValues(values []string) error
	Flags() Flags
	Prepare(ctx context.Context, env *Env) error
	Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool
	Reset()
}

// Base carries the identity, schema and bound values of a rule. Concrete
// rules embed it and override Prepare, Apply and Reset as needed.
type Base struct {
	name     string
	labels   []string
	values   []string
	flags    Flags
	matchers []*TextMatcher
}

// NewBase validates values against labels.
func NewBase(name string, labels, values []string, flags Flags) (Base, error) {
	b := Base{name: name, labels: labels, flags: flags}
	if err := b.SetValues(values); err != nil {
		return Base{}, err
	}
	return b, nil
}

func (b *Base) Name() string { return b.name }

func (b *Base) Labels() []string { return append([]string(nil), b.labels...) }

func (b *Base) Values() []string { return append([]string(nil), b.values...) }

func (b *Base) Flags() Flags { return b.flags }

func (b *Base) SetValues(values []string) error {
	if len(values) != len(b.labels) {
		return fmt.Errorf("%w: %s expects %d values, got %d", ErrParamCount, b.name, len(b.labels), len(values))
	}
	b.values = append([]string(nil), values...)
	b.matchers = nil
	return nil
}

func (b *Base) Prepare(context.Context, *Env) error { return nil }

func (b *Base) Reset() {}

// Value returns the i-th bound value with surrounding space removed.
func (b *Base) Value(i int) string {
	if i < 0 || i >= len(b.values) {
		return ""
	}
	return strings.TrimSpace(b.values[i])
}

// Matcher returns the text matcher for the i-th value, compiling it on first
// use. The pattern is the value as Value returns it. An index outside the
// schema yields a matcher that never matches.
func (b *Base) Matcher(i int) *TextMatcher {
	if i < 0 || i >= len(b.values) {
		return &TextMatcher{never: true}
	}
	if b.matchers == nil {
		b.matchers = make([]*TextMatcher, len(b.values))
	}
	if b.matchers[i] == nil {
		b.matchers[i] = NewTextMatcher(b.Value(i), b.flags)
	}
	return b.matchers[i]
}

// MatchSubstring reports whether text matches the i-th value. An empty value
// matches everything.
func (b *Base) MatchSubstring(i int, text string) bool {
	return b.Matcher(i).Match(text)
}

// Describe renders a rule as Name(value, ...).
func Describe(r Rule) string {
	return fmt.Sprintf("%s(%s)", r.Name(), strings.Join(r.Values(), ", "))
}

// CheckPatterns reports the first value that is not a valid regular
// expression when the rule matches by regex.
func CheckPatterns(r Rule) error {
	flags := matchFlags(r)
	if !flags.UseRegex {
		return nil
	}
	for i, v := range r.Values() {
		if err := NewTextMatcher(strings.TrimSpace(v), flags).Err(); err != nil {
			return fmt.Errorf("%s value %d: %w", r.Name(), i, err)
		}
	}
	return nil
}
