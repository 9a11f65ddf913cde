package rules

import (
	"context"
	"strings"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func placeRules() []filter.RuleInfo {
	pl := genealogy.NSPlace
	return []filter.RuleInfo{
		define(ruleDef{ns: pl, name: "HasData", labels: []string{"Name:", "Place type:", "Code:"}, category: catGeneral, allowRegex: true,
			description: "Matches places with particular parameters"},
			func(b filter.Base) filter.Rule { return &hasPlaceData{Base: b} }),
		define(ruleDef{ns: pl, name: "HasNoLatOrLon", category: catPosition,
			description: "Matches places with empty latitude or longitude"},
			func(b filter.Base) filter.Rule { return &hasNoLatOrLon{Base: b} }),
	}
}

type hasPlaceData struct{ filter.Base }

func (r *hasPlaceData) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	pl, ok := obj.(*genealogy.Place)
	if !ok || allEmpty(&r.Base) {
		return false
	}
	if !r.MatchSubstring(0, pl.Name) {
		return false
	}
	if typ := r.Value(1); typ != "" && !strings.EqualFold(pl.Type, typ) {
		return false
	}
	return r.MatchSubstring(2, pl.Code)
}

type hasNoLatOrLon struct{ filter.Base }

func (r *hasNoLatOrLon) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	pl, ok := obj.(*genealogy.Place)
	return ok && (strings.TrimSpace(pl.Lat) == "" || strings.TrimSpace(pl.Long) == "")
}
