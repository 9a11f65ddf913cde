package filterlist

import (
	"fmt"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

// RuleDef is the persisted form of one rule.
type RuleDef struct {
	Class    string   `yaml:"class" json:"class"`
	UseRegex bool     `yaml:"use_regex" json:"use_regex"`
	UseCase  bool     `yaml:"use_case" json:"use_case"`
	Values   []string `yaml:"values" json:"values"`
}

// Definition is the persisted form of a filter.
type Definition struct {
	Name     string    `yaml:"name" json:"name"`
	Comment  string    `yaml:"comment" json:"comment"`
	Function string    `yaml:"function" json:"function"`
	Invert   bool      `yaml:"invert" json:"invert"`
	Rules    []RuleDef `yaml:"rules" json:"rules"`
}

type objectSection struct {
	Type    string       `yaml:"type"`
	Filters []Definition `yaml:"filters"`
}

type document struct {
	Version int             `yaml:"version"`
	Objects []objectSection `yaml:"objects"`
}

const formatVersion = 1

// Encode captures f as a Definition.
func Encode(f *filter.GenericFilter) Definition {
	def := Definition{
		Name:     f.Name,
		Comment:  f.Comment,
		Function: string(f.LogicalOp()),
		Invert:   f.Invert(),
		Rules:    make([]RuleDef, 0, len(f.Rules())),
	}
	for _, r := range f.Rules() {
		values := r.Values()
		if values == nil {
			values = []string{}
		}
		def.Rules = append(def.Rules, RuleDef{
			Class:    r.Name(),
			UseRegex: r.Flags().UseRegex,
			UseCase:  r.Flags().UseCase,
			Values:   values,
		})
	}
	return def
}

// Decode builds a filter of namespace ns from def. An empty or unknown
// function falls back to "and"; an unknown rule class or a wrong value count
// fails.
func Decode(reg *filter.Registry, ns genealogy.Namespace, def Definition) (*filter.GenericFilter, error) {
	f := filter.New(ns, def.Name)
	f.Comment = def.Comment
	f.SetInvert(def.Invert)
	f.SetLogicalOp(filter.LogicalOp(def.Function))

	for i, rd := range def.Rules {
		r, err := reg.New(ns, rd.Class, rd.Values, filter.Flags{UseRegex: rd.UseRegex, UseCase: rd.UseCase})
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		f.AddRule(r)
	}
	return f, nil
}

// Clone returns an independent copy of f with freshly constructed rules.
// Filters assembled by hand are rebuilt from their definition.
func Clone(reg *filter.Registry, f *filter.GenericFilter) (*filter.GenericFilter, error) {
	if c, err := f.Clone(); err == nil {
		return c, nil
	}
	return Decode(reg, f.Namespace(), Encode(f))
}
