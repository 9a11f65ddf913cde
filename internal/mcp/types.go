package mcp

import (
	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/filterlist"
)

type NamespaceParams struct {
	Namespace string `json:"namespace" jsonschema:"record type: Person, Family, Event, Place, Source, Citation, Repository, Note or Media"`
}

type FilterRefParams struct {
	Namespace string `json:"namespace" jsonschema:"record type of the filter"`
	Name      string `json:"name" jsonschema:"filter name"`
}

type RuleParams struct {
	Class    string   `json:"class" jsonschema:"rule name as listed by list_rules"`
	UseRegex bool     `json:"use_regex,omitempty" jsonschema:"treat text values as regular expressions"`
	UseCase  bool     `json:"use_case,omitempty" jsonschema:"compare text case-sensitively"`
	Values   []string `json:"values,omitempty" jsonschema:"one value per rule label, in label order"`
}

type DefinitionParams struct {
	Name     string       `json:"name,omitempty" jsonschema:"filter name, required when saving"`
	Comment  string       `json:"comment,omitempty"`
	Function string       `json:"function,omitempty" jsonschema:"how rules combine: and, or, one (default and)"`
	Invert   bool         `json:"invert,omitempty" jsonschema:"return the records that do not match"`
	Rules    []RuleParams `json:"rules,omitempty"`
}

func (d DefinitionParams) definition() filterlist.Definition {
	def := filterlist.Definition{
		Name:     d.Name,
		Comment:  d.Comment,
		Function: d.Function,
		Invert:   d.Invert,
		Rules:    make([]filterlist.RuleDef, 0, len(d.Rules)),
	}
	for _, r := range d.Rules {
		values := r.Values
		if values == nil {
			values = []string{}
		}
		def.Rules = append(def.Rules, filterlist.RuleDef{
			Class:    r.Class,
			UseRegex: r.UseRegex,
			UseCase:  r.UseCase,
			Values:   values,
		})
	}
	return def
}

type ApplyFilterParams struct {
	Namespace  string            `json:"namespace" jsonschema:"record type to evaluate"`
	Filter     string            `json:"filter,omitempty" jsonschema:"name of a saved filter; omit when passing definition"`
	Definition *DefinitionParams `json:"definition,omitempty" jsonschema:"ad-hoc filter to evaluate without saving"`
	Params     []string          `json:"params,omitempty" jsonschema:"values bound into every rule before evaluation"`
	Handles    []string          `json:"handles,omitempty" jsonschema:"candidate handles; omit to evaluate every record"`
	Visibility *VisibilityParams `json:"visibility,omitempty" jsonschema:"saved filters that hide records from the evaluation"`
}

type VisibilityParams struct {
	People string `json:"people,omitempty" jsonschema:"Person filter; people it rejects and their families are hidden"`
	Events string `json:"events,omitempty" jsonschema:"Event filter; events it rejects are hidden"`
	Notes  string `json:"notes,omitempty" jsonschema:"Note filter; notes it rejects are hidden"`
}

type DefineFilterParams struct {
	Namespace  string           `json:"namespace" jsonschema:"record type of the filter"`
	Definition DefinitionParams `json:"definition"`
}

type ListRulesResult struct {
	Rules []query.RuleSummary `json:"rules"`
}

type ListFiltersResult struct {
	Filters []query.FilterSummary `json:"filters"`
}

type ApplyFilterResult struct {
	RunID      string   `json:"run_id"`
	Namespace  string   `json:"namespace"`
	Filter     string   `json:"filter,omitempty"`
	Matches    []string `json:"matches"`
	Count      int      `json:"count"`
	Candidates int      `json:"candidates"`
	ElapsedMS  int64    `json:"elapsed_ms"`
}

type DeleteFilterResult struct {
	Deleted bool `json:"deleted"`
}

type ReloadResult struct {
	Diagnostics []filterlist.Diagnostic `json:"diagnostics"`
}
