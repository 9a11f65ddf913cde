package filter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rpggio/lineage/internal/genealogy"
)

// Constructor builds a rule from persisted values and flags.
type Constructor func(values []string, flags Flags) (Rule, error)

// RuleInfo describes a registered rule class for construction and for
// editors that present the catalogue.
type RuleInfo struct {
	Name        string
	Namespace   genealogy.Namespace
	Labels      []string
	Category    string
	Description string
	// AllowRegex marks rules whose text values may be regular expressions.
	AllowRegex bool
	New        Constructor
}

type ruleKey struct {
	ns   genealogy.Namespace
	name string
}

// Registry maps (namespace, rule name) to rule classes.
type Registry struct {
	mu    sync.RWMutex
	rules map[ruleKey]RuleInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[ruleKey]RuleInfo)}
}

// Register adds a rule class. Registering the same key twice fails.
func (r *Registry) Register(info RuleInfo) error {
	if info.Name == "" || info.New == nil {
		return fmt.Errorf("register rule %q: name and constructor are required", info.Name)
	}
	key := ruleKey{info.Namespace, info.Name}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[key]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicateRule, info.Namespace, info.Name)
	}
	r.rules[key] = info
	return nil
}

// Lookup returns the rule class registered under (ns, name).
func (r *Registry) Lookup(ns genealogy.Namespace, name string) (RuleInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.rules[ruleKey{ns, name}]
	return info, ok
}

// List returns the namespace's rule classes ordered by category, then name.
func (r *Registry) List(ns genealogy.Namespace) []RuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []RuleInfo
	for key, info := range r.rules {
		if key.ns == ns {
			list = append(list, info)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Category != list[j].Category {
			return list[i].Category < list[j].Category
		}
		return list[i].Name < list[j].Name
	})
	return list
}

// New constructs a rule. The flags are kept as given; a rule that does not
// allow regular expressions matches as if UseRegex were unset.
func (r *Registry) New(ns genealogy.Namespace, name string, values []string, flags Flags) (Rule, error) {
	info, ok := r.Lookup(ns, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownRule, ns, name)
	}
	if values == nil {
		values = []string{}
	}
	return info.build(values, flags)
}

func (info RuleInfo) build(values []string, flags Flags) (Rule, error) {
	effective := flags
	if !info.AllowRegex {
		effective.UseRegex = false
	}
	rule, err := info.New(values, effective)
	if err != nil {
		return nil, err
	}
	return &built{Rule: rule, info: info, flags: flags}, nil
}

// built is a rule constructed by a Registry. It remembers its class so the
// rule can be rebuilt, and the flags it was given so they persist unchanged.
type built struct {
	Rule
	info  RuleInfo
	flags Flags
}

func (b *built) Flags() Flags { return b.flags }

// CloneRule builds a fresh rule of the same class with the same values and
// flags. Only rules constructed by a Registry can be cloned.
func CloneRule(r Rule) (Rule, error) {
	b, ok := r.(*built)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotClonable, r.Name())
	}
	return b.info.build(b.Values(), b.flags)
}

// matchFlags returns the flags a rule matches with, which may differ from
// the flags it persists.
func matchFlags(r Rule) Flags {
	if b, ok := r.(*built); ok {
		return b.Rule.Flags()
	}
	return r.Flags()
}
