// Package rules implements the rule library for every record type and
// builds the registry that maps persisted rule names to constructors.
package rules

import (
	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

// Categories group rules in editors.
const (
	catGeneral      = "General filters"
	catEvent        = "Event filters"
	catFamily       = "Family filters"
	catAncestral    = "Ancestral filters"
	catDescendant   = "Descendant filters"
	catRelationship = "Relationship filters"
	catCitation     = "Citation/source filters"
	catChild        = "Child filters"
	catFather       = "Father filters"
	catMother       = "Mother filters"
	catPosition     = "Position filters"
)

// NewRegistry returns a registry holding the whole rule library.
func NewRegistry() *filter.Registry {
	reg := filter.NewRegistry()
	for _, info := range Library() {
		if err := reg.Register(info); err != nil {
			panic(err)
		}
	}
	return reg
}

// Library lists every rule class.
func Library() []filter.RuleInfo {
	var lib []filter.RuleInfo
	lib = append(lib, genericRules()...)
	lib = append(lib, personRules()...)
	lib = append(lib, relationshipRules()...)
	lib = append(lib, familyRules()...)
	lib = append(lib, eventRules()...)
	lib = append(lib, placeRules()...)
	lib = append(lib, sourceRules()...)
	lib = append(lib, citationRules()...)
	lib = append(lib, repositoryRules()...)
	lib = append(lib, noteRules()...)
	lib = append(lib, mediaRules()...)
	return lib
}

type ruleDef struct {
	ns          genealogy.Namespace
	name        string
	labels      []string
	category    string
	description string
	allowRegex  bool
	forceRegex  bool
}

// define builds a RuleInfo whose constructor validates values and hands the
// resulting Base to build.
func define(d ruleDef, build func(filter.Base) filter.Rule) filter.RuleInfo {
	return filter.RuleInfo{
		Name:        d.name,
		Namespace:   d.ns,
		Labels:      d.labels,
		Category:    d.category,
		Description: d.description,
		AllowRegex:  d.allowRegex || d.forceRegex,
		New: func(values []string, flags filter.Flags) (filter.Rule, error) {
			if d.forceRegex {
				flags.UseRegex = true
			}
			b, err := filter.NewBase(d.name, d.labels, values, flags)
			if err != nil {
				return nil, err
			}
			return build(b), nil
		},
	}
}

// perNamespace registers one rule shape under several namespaces.
func perNamespace(namespaces []genealogy.Namespace, d ruleDef, build func(genealogy.Namespace, filter.Base) filter.Rule) []filter.RuleInfo {
	infos := make([]filter.RuleInfo, 0, len(namespaces))
	for _, ns := range namespaces {
		d := d
		d.ns = ns
		infos = append(infos, define(d, func(b filter.Base) filter.Rule { return build(ns, b) }))
	}
	return infos
}
