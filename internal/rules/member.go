package rules

import (
	"context"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

// member selects the people of a family a wrapped person rule is applied to.
type member func(fam *genealogy.Family) []string

func father(fam *genealogy.Family) []string { return nonEmpty(fam.FatherHandle) }

func mother(fam *genealogy.Family) []string { return nonEmpty(fam.MotherHandle) }

func anyChild(fam *genealogy.Family) []string {
	out := make([]string, 0, len(fam.ChildRefList))
	for _, c := range fam.ChildRefList {
		out = append(out, c.Handle)
	}
	return out
}

func nonEmpty(h string) []string {
	if h == "" {
		return nil
	}
	return []string{h}
}

// memberRule lifts a person rule to families. Everything but Apply is
// delegated to the person rule; a family matches when any selected member
// does, and never when the member is absent.
type memberRule struct {
	filter.Rule
	pick member
}

func (r *memberRule) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	fam, ok := obj.(*genealogy.Family)
	if !ok {
		return false
	}
	for _, h := range r.pick(fam) {
		p, err := genealogy.GetPerson(ctx, db, h)
		if err != nil {
			continue
		}
		if r.Rule.Apply(ctx, db, p) {
			return true
		}
	}
	return false
}

type memberDef struct {
	prefix   string
	category string
	pick     member
	who      string
}

var memberDefs = []memberDef{
	{prefix: "Father", category: catFather, pick: father, who: "fathers"},
	{prefix: "Mother", category: catMother, pick: mother, who: "mothers"},
	{prefix: "Child", category: catChild, pick: anyChild, who: "children"},
}

func memberRules() []filter.RuleInfo {
	f := genealogy.NSFamily
	var infos []filter.RuleInfo
	for _, m := range memberDefs {
		pick := m.pick
		infos = append(infos,
			define(ruleDef{ns: f, name: "RegExp" + m.prefix + "Name", labels: []string{"Expression:"}, category: m.category, forceRegex: true,
				description: "Matches families whose " + m.who + " have a name matching a regular expression"},
				func(b filter.Base) filter.Rule { return &memberRule{Rule: &searchName{Base: b}, pick: pick} }),
			define(ruleDef{ns: f, name: "Search" + m.prefix + "Name", labels: []string{"Substring:"}, category: m.category,
				description: "Matches families whose " + m.who + " have a name containing a substring"},
				func(b filter.Base) filter.Rule { return &memberRule{Rule: &searchName{Base: b}, pick: pick} }),
			define(ruleDef{ns: f, name: m.prefix + "HasIdOf", labels: []string{"Person ID:"}, category: m.category,
				description: "Matches families whose " + m.who + " have a specified ID"},
				func(b filter.Base) filter.Rule { return &memberRule{Rule: &hasIDOf{Base: b}, pick: pick} }),
			define(ruleDef{ns: f, name: m.prefix + "HasNameOf", labels: nameLabels, category: m.category, allowRegex: true,
				description: "Matches families whose " + m.who + " have a specified (partial) name"},
				func(b filter.Base) filter.Rule { return &memberRule{Rule: &hasNameOf{Base: b}, pick: pick} }),
		)
	}
	return infos
}
