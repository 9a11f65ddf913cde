package rules

import (
	"context"
	"strings"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func familyRules() []filter.RuleInfo {
	f := genealogy.NSFamily
	infos := []filter.RuleInfo{
		define(ruleDef{ns: f, name: "HasRelType", labels: []string{"Relationship type:"}, category: catGeneral,
			description: "Matches families with the relationship type of a particular value"},
			func(b filter.Base) filter.Rule { return &hasRelType{Base: b} }),
		define(ruleDef{ns: f, name: "HasEvent", labels: []string{"Family event:", "Date:", "Place:", "Description:"}, category: catGeneral, allowRegex: true,
			description: "Matches families with an event of a particular value"},
			func(b filter.Base) filter.Rule { return &hasPersonEvent{Base: b, fields: allEventFields()} }),
		define(ruleDef{ns: f, name: "MatchesEventFilter", labels: []string{"Event filter name:"}, category: catEvent,
			description: "Matches families with events matching the event filter name"},
			func(b filter.Base) filter.Rule { return &matchesEventFilter{Base: b} }),
	}
	return append(infos, memberRules()...)
}

type hasRelType struct{ filter.Base }

func (r *hasRelType) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	fam, ok := obj.(*genealogy.Family)
	want := r.Value(0)
	return ok && want != "" && strings.EqualFold(fam.Type, want)
}
