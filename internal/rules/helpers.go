package rules

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

// counter compares a count against a user-selected number.
type counter struct {
	n     int
	mode  string
	valid bool
}

const (
	countLess    = "less than"
	countGreater = "greater than"
	countEqual   = "equal to"
)

func parseCounter(number, mode string) counter {
	n, err := strconv.Atoi(strings.TrimSpace(number))
	if err != nil {
		return counter{}
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case countLess, "lesser than":
		mode = countLess
	case countGreater:
		mode = countGreater
	default:
		mode = countEqual
	}
	return counter{n: n, mode: mode, valid: true}
}

func (c counter) test(count int) bool {
	if !c.valid {
		return false
	}
	switch c.mode {
	case countLess:
		return count < c.n
	case countGreater:
		return count > c.n
	}
	return count == c.n
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// lookupMiss reports whether err is a plain "no such record" that rules
// treat as unresolved rather than as a failure.
func lookupMiss(err error) bool {
	return errors.Is(err, genealogy.ErrNotFound)
}

// nested holds a referenced filter prepared for per-record delegation.
type nested struct {
	sub *filter.GenericFilter
}

// prepare resolves and prepares the named filter. A missing filter leaves
// the rule unresolved; a cycle fails the evaluation.
func (n *nested) prepare(ctx context.Context, env *filter.Env, ns genealogy.Namespace, name string) error {
	sub, err := env.Lookup(ns, name)
	if err != nil {
		env.Log().Warn("referenced filter not found", "namespace", ns, "filter", name)
		return nil
	}
	if err := sub.Prepare(ctx, env); err != nil {
		return err
	}
	n.sub = sub
	return nil
}

func (n *nested) check(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	return n.sub != nil && n.sub.Check(ctx, db, obj)
}

func (n *nested) reset() {
	if n.sub != nil {
		n.sub.Reset()
		n.sub = nil
	}
}

// matchSet evaluates the named filter over its namespace. A missing filter
// yields a nil set.
func matchSet(ctx context.Context, env *filter.Env, ns genealogy.Namespace, name string) ([]string, error) {
	sub, err := env.Lookup(ns, name)
	if err != nil {
		env.Log().Warn("referenced filter not found", "namespace", ns, "filter", name)
		return nil, nil
	}
	return sub.MatchAll(ctx, env)
}

func toSet(handles []string) map[string]bool {
	set := make(map[string]bool, len(handles))
	for _, h := range handles {
		set[h] = true
	}
	return set
}

// eventFields matches an event against optional type, date, place and
// description values of a rule. Index -1 marks a field the rule lacks.
type eventFields struct {
	typ, date, place, desc int

	when    genealogy.Date
	badDate bool
}

func (f *eventFields) prepare(b *filter.Base) {
	f.when, f.badDate = genealogy.Date{}, false
	if f.date < 0 {
		return
	}
	d, err := genealogy.ParseDate(b.Value(f.date))
	if err != nil {
		f.badDate = true
		return
	}
	f.when = d
}

func (f *eventFields) match(ctx context.Context, db genealogy.Database, b *filter.Base, ev *genealogy.Event) bool {
	if f.badDate {
		return false
	}
	if f.typ >= 0 {
		if want := b.Value(f.typ); want != "" && !strings.EqualFold(ev.Type, want) {
			return false
		}
	}
	if !f.when.IsEmpty() && !f.when.Match(ev.Date) {
		return false
	}
	if f.place >= 0 && b.Value(f.place) != "" {
		if ev.Place == "" {
			return false
		}
		place, err := genealogy.GetPlace(ctx, db, ev.Place)
		if err != nil || !b.MatchSubstring(f.place, place.Name) {
			return false
		}
	}
	if f.desc >= 0 && !b.MatchSubstring(f.desc, ev.Description) {
		return false
	}
	return true
}

// anyEvent reports whether any referenced event passes keep and match.
func (f *eventFields) anyEvent(ctx context.Context, db genealogy.Database, b *filter.Base, refs []genealogy.EventRef, keep func(genealogy.EventRef, *genealogy.Event) bool) bool {
	for _, ref := range refs {
		ev, err := genealogy.GetEvent(ctx, db, ref.Handle)
		if err != nil {
			continue
		}
		if keep != nil && !keep(ref, ev) {
			continue
		}
		if f.match(ctx, db, b, ev) {
			return true
		}
	}
	return false
}

// allEmpty reports whether none of the rule's values is set.
func allEmpty(b *filter.Base) bool {
	for i := range b.Labels() {
		if b.Value(i) != "" {
			return false
		}
	}
	return true
}
