package filter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rpggio/lineage/internal/genealogy"
)

// LogicalOp combines the results of a filter's rules.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
	OpOne LogicalOp = "one"
)

// ParseLogicalOp reads an operator name. It reports false for unknown names.
func ParseLogicalOp(s string) (LogicalOp, bool) {
	switch op := LogicalOp(strings.ToLower(strings.TrimSpace(s))); op {
	case OpAnd, OpOr, OpOne:
		return op, true
	}
	return OpAnd, false
}

// GenericFilter is an ordered list of rules over one namespace, combined
// with a logical operator and optionally inverted.
type GenericFilter struct {
	Name    string
	Comment string

	namespace genealogy.Namespace
	op        LogicalOp
	invert    bool
	rules     []Rule

	// mu serializes Apply; rule state is per instance.
	mu sync.Mutex
	// prepared counts outstanding Prepare calls so that a filter referenced
	// by several rules of one evaluation is prepared once.
	prepared int
	// origin is the filter this one was cloned from.
	origin *GenericFilter
}

// New creates an empty AND filter over ns.
func New(ns genealogy.Namespace, name string) *GenericFilter {
	return &GenericFilter{Name: name, namespace: ns, op: OpAnd}
}

func (f *GenericFilter) Namespace() genealogy.Namespace { return f.namespace }

func (f *GenericFilter) LogicalOp() LogicalOp { return f.op }

// SetLogicalOp sets the operator. Unknown operators fall back to AND.
func (f *GenericFilter) SetLogicalOp(op LogicalOp) {
	if parsed, ok := ParseLogicalOp(string(op)); ok {
		f.op = parsed
		return
	}
	f.op = OpAnd
}

func (f *GenericFilter) Invert() bool { return f.invert }

func (f *GenericFilter) SetInvert(invert bool) { f.invert = invert }

// Rules returns the rules in evaluation order.
func (f *GenericFilter) Rules() []Rule { return append([]Rule(nil), f.rules...) }

func (f *GenericFilter) AddRule(r Rule) { f.rules = append(f.rules, r) }

// DeleteRule removes the rule at index i.
func (f *GenericFilter) DeleteRule(i int) {
	if i < 0 || i >= len(f.rules) {
		return
	}
	f.rules = append(f.rules[:i], f.rules[i+1:]...)
}

func (f *GenericFilter) SetRules(rules []Rule) { f.rules = append([]Rule(nil), rules...) }

// Clone returns an independent copy of f with freshly built rules. It fails
// with ErrNotClonable when a rule was not built by a Registry.
func (f *GenericFilter) Clone() (*GenericFilter, error) {
	c := &GenericFilter{
		Name:      f.Name,
		Comment:   f.Comment,
		namespace: f.namespace,
		op:        f.op,
		invert:    f.invert,
		origin:    f.root(),
		rules:     make([]Rule, 0, len(f.rules)),
	}
	for _, r := range f.rules {
		cr, err := CloneRule(r)
		if err != nil {
			return nil, fmt.Errorf("clone %s: %w", f.Label(), err)
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// root returns the filter f was ultimately cloned from, or f itself.
func (f *GenericFilter) root() *GenericFilter {
	if f.origin != nil {
		return f.origin
	}
	return f
}

// Label names the filter in diagnostics.
func (f *GenericFilter) Label() string {
	if f.Name == "" {
		return string(f.namespace) + ":<unnamed>"
	}
	return string(f.namespace) + ":" + f.Name
}

// Prepare prepares every rule in order. Nested preparation through filter
// rules is checked for cycles. Each successful Prepare must be paired with
// a Reset.
func (f *GenericFilter) Prepare(ctx context.Context, env *Env) error {
	if err := env.enter(f); err != nil {
		return err
	}
	defer env.leave(f)

	if f.prepared > 0 {
		f.prepared++
		return nil
	}
	for i, r := range f.rules {
		if err := r.Prepare(ctx, env); err != nil {
			for _, done := range f.rules[:i] {
				done.Reset()
			}
			r.Reset()
			return fmt.Errorf("prepare %s in %s: %w", r.Name(), f.Label(), err)
		}
	}
	f.prepared = 1
	return nil
}

// Reset releases prepared rule state once the last Prepare is matched.
func (f *GenericFilter) Reset() {
	if f.prepared == 0 {
		return
	}
	f.prepared--
	if f.prepared > 0 {
		return
	}
	for _, r := range f.rules {
		r.Reset()
	}
}

// Check evaluates the prepared filter against one record. AND and OR stop at
// the first deciding rule; ONE evaluates every rule. With no rules AND
// passes and OR and ONE fail, before inversion.
func (f *GenericFilter) Check(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	var result bool
	switch f.op {
	case OpOr:
		for _, r := range f.rules {
			if r.Apply(ctx, db, obj) {
				result = true
				break
			}
		}
	case OpOne:
		count := 0
		for _, r := range f.rules {
			if r.Apply(ctx, db, obj) {
				count++
			}
		}
		result = count == 1
	default:
		result = true
		for _, r := range f.rules {
			if !r.Apply(ctx, db, obj) {
				result = false
				break
			}
		}
	}
	return result != f.invert
}

func (f *GenericFilter) String() string {
	parts := make([]string, len(f.rules))
	for i, r := range f.rules {
		parts[i] = Describe(r)
	}
	s := strings.Join(parts, " "+strings.ToUpper(string(f.op))+" ")
	if f.invert {
		s = "NOT (" + s + ")"
	}
	return s
}
