package rules

import (
	"context"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func mediaRules() []filter.RuleInfo {
	return []filter.RuleInfo{
		define(ruleDef{ns: genealogy.NSMedia, name: "HasMedia", labels: []string{"Title:", "Type:", "Path:", "Date:"}, category: catGeneral, allowRegex: true,
			description: "Matches media with particular parameters"},
			func(b filter.Base) filter.Rule { return &hasMedia{Base: b} }),
	}
}

type hasMedia struct {
	filter.Base
	when    genealogy.Date
	badDate bool
}

func (r *hasMedia) Prepare(context.Context, *filter.Env) error {
	d, err := genealogy.ParseDate(r.Value(3))
	r.when, r.badDate = d, err != nil
	return nil
}

func (r *hasMedia) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	m, ok := obj.(*genealogy.Media)
	if !ok || r.badDate || allEmpty(&r.Base) {
		return false
	}
	if !r.MatchSubstring(0, m.Description) || !r.MatchSubstring(1, m.MimeType) || !r.MatchSubstring(2, m.Path) {
		return false
	}
	return r.when.IsEmpty() || r.when.Match(m.Date)
}
