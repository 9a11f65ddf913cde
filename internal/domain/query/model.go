package query

import (
	"time"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/filterlist"
)

// RuleSummary describes a rule class available to filter editors.
type RuleSummary struct {
	Name        string   `json:"name"`
	Namespace   string   `json:"namespace"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	AllowRegex  bool     `json:"allow_regex"`
}

// FilterSummary is a named filter as listed to clients.
type FilterSummary struct {
	Name      string           `json:"name"`
	Namespace string           `json:"namespace"`
	Scope     filterlist.Scope `json:"scope"`
	Comment   string           `json:"comment,omitempty"`
	Function  string           `json:"function"`
	Invert    bool             `json:"invert"`
	RuleCount int              `json:"rule_count"`
}

// FilterDetail is a named filter with its full definition.
type FilterDetail struct {
	Namespace  string                `json:"namespace"`
	Scope      filterlist.Scope      `json:"scope"`
	Definition filterlist.Definition `json:"definition"`
}

// Visibility names saved filters that hide people, events and notes from an
// evaluation. Empty names leave that record type unrestricted.
type Visibility struct {
	People string `json:"people,omitempty"`
	Events string `json:"events,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (v *Visibility) empty() bool {
	return v == nil || (v.People == "" && v.Events == "" && v.Notes == "")
}

// ApplyRequest selects a filter and the records to run it over. Exactly one
// of Filter and Definition is set. Params, when non-empty, are bound into
// every rule before evaluation. A nil Handles evaluates the whole namespace.
type ApplyRequest struct {
	Namespace  string
	Filter     string
	Definition *filterlist.Definition
	Params     []string
	Handles    []string
	Visibility *Visibility
	Progress   filter.ProgressFunc
}

// ApplyResult is the outcome of one evaluation.
type ApplyResult struct {
	RunID      string        `json:"run_id"`
	Namespace  string        `json:"namespace"`
	Filter     string        `json:"filter"`
	Matches    []string      `json:"matches"`
	Candidates int           `json:"candidates"`
	Elapsed    time.Duration `json:"elapsed"`
}

// DefineRequest creates or replaces a custom filter.
type DefineRequest struct {
	Namespace  string
	Definition filterlist.Definition
}
