package rules

import (
	"context"
	"strconv"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func citationRules() []filter.RuleInfo {
	c := genealogy.NSCitation
	return []filter.RuleInfo{
		define(ruleDef{ns: c, name: "HasCitation", labels: []string{"Volume/Page:", "Date:", "Confidence level:"}, category: catGeneral, allowRegex: true,
			description: "Matches citations with particular parameters"},
			func(b filter.Base) filter.Rule { return &hasCitation{Base: b} }),
		define(ruleDef{ns: c, name: "MatchesPageSubstringOf", labels: []string{"Text:"}, category: catGeneral, allowRegex: true,
			description: "Matches citations whose Volume/Page contains a certain substring"},
			func(b filter.Base) filter.Rule { return &matchesPage{Base: b} }),
		define(ruleDef{ns: c, name: "MatchesSourceFilter", labels: []string{"Source filter name:"}, category: catGeneral,
			description: "Matches citations with sources that match the source filter name"},
			func(b filter.Base) filter.Rule { return &matchesSourceFilter{Base: b} }),
	}
}

// hasCitation checks page text, date overlap and a minimum confidence.
type hasCitation struct {
	filter.Base
	when       genealogy.Date
	confidence int
	invalid    bool
}

func (r *hasCitation) Prepare(context.Context, *filter.Env) error {
	r.when, r.confidence, r.invalid = genealogy.Date{}, -1, false
	d, err := genealogy.ParseDate(r.Value(1))
	if err != nil {
		r.invalid = true
		return nil
	}
	r.when = d
	if v := r.Value(2); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.invalid = true
			return nil
		}
		r.confidence = n
	}
	return nil
}

func (r *hasCitation) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	c, ok := obj.(*genealogy.Citation)
	if !ok || r.invalid || allEmpty(&r.Base) {
		return false
	}
	if !r.MatchSubstring(0, c.Page) {
		return false
	}
	if !r.when.IsEmpty() && !r.when.Match(c.Date) {
		return false
	}
	return r.confidence < 0 || c.Confidence >= r.confidence
}

type matchesPage struct{ filter.Base }

func (r *matchesPage) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	c, ok := obj.(*genealogy.Citation)
	return ok && r.Value(0) != "" && r.MatchSubstring(0, c.Page)
}

type matchesSourceFilter struct {
	filter.Base
	nested
}

func (r *matchesSourceFilter) Prepare(ctx context.Context, env *filter.Env) error {
	return r.prepare(ctx, env, genealogy.NSSource, r.Value(0))
}

func (r *matchesSourceFilter) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	c, ok := obj.(*genealogy.Citation)
	if !ok || c.SourceHandle == "" || r.sub == nil {
		return false
	}
	src, err := genealogy.GetSource(ctx, db, c.SourceHandle)
	return err == nil && r.check(ctx, db, src)
}

func (r *matchesSourceFilter) Reset() { r.reset() }
