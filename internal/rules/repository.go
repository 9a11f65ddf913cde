package rules

import (
	"context"
	"strings"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func repositoryRules() []filter.RuleInfo {
	r := genealogy.NSRepository
	return []filter.RuleInfo{
		define(ruleDef{ns: r, name: "HasRepo", labels: []string{"Name:", "Type:", "Address:", "URL:"}, category: catGeneral, allowRegex: true,
			description: "Matches repositories with particular parameters"},
			func(b filter.Base) filter.Rule { return &hasRepo{Base: b} }),
		define(ruleDef{ns: r, name: "MatchesNameSubstringOf", labels: []string{"Text:"}, category: catGeneral, allowRegex: true,
			description: "Matches repositories whose name contains a certain substring"},
			func(b filter.Base) filter.Rule { return &repoNameContains{Base: b} }),
	}
}

type hasRepo struct{ filter.Base }

func (r *hasRepo) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	repo, ok := obj.(*genealogy.Repository)
	if !ok || allEmpty(&r.Base) {
		return false
	}
	if typ := r.Value(1); typ != "" && !strings.EqualFold(repo.Type, typ) {
		return false
	}
	return r.MatchSubstring(0, repo.Name) &&
		r.MatchSubstring(2, repo.Address) &&
		r.MatchSubstring(3, repo.URL)
}

type repoNameContains struct{ filter.Base }

func (r *repoNameContains) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	repo, ok := obj.(*genealogy.Repository)
	return ok && r.Value(0) != "" && r.MatchSubstring(0, repo.Name)
}
