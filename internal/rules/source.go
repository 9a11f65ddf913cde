package rules

import (
	"context"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func sourceRules() []filter.RuleInfo {
	s := genealogy.NSSource
	return []filter.RuleInfo{
		define(ruleDef{ns: s, name: "HasSource", labels: []string{"Title:", "Author:", "Abbreviation:", "Publication:"}, category: catGeneral, allowRegex: true,
			description: "Matches sources with particular parameters"},
			func(b filter.Base) filter.Rule { return &hasSource{Base: b} }),
		define(ruleDef{ns: s, name: "HasRepository", labels: countLabels, category: catGeneral,
			description: "Matches sources with a certain number of repository references"},
			func(b filter.Base) filter.Rule { return &hasRepositoryCount{Base: b} }),
		define(ruleDef{ns: s, name: "HasRepositoryCallNumberRef", labels: []string{"Call number:"}, category: catGeneral, allowRegex: true,
			description: "Matches sources with a repository reference containing a call number"},
			func(b filter.Base) filter.Rule { return &hasCallNumber{Base: b} }),
		define(ruleDef{ns: s, name: "MatchesRepositoryFilter", labels: []string{"Repository filter name:"}, category: catGeneral,
			description: "Matches sources with repository references that match the repository filter name"},
			func(b filter.Base) filter.Rule { return &matchesRepositoryFilter{Base: b} }),
	}
}

type hasSource struct{ filter.Base }

func (r *hasSource) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	src, ok := obj.(*genealogy.Source)
	if !ok || allEmpty(&r.Base) {
		return false
	}
	return r.MatchSubstring(0, src.Title) &&
		r.MatchSubstring(1, src.Author) &&
		r.MatchSubstring(2, src.Abbrev) &&
		r.MatchSubstring(3, src.PubInfo)
}

type hasRepositoryCount struct {
	filter.Base
	count counter
}

func (r *hasRepositoryCount) Prepare(context.Context, *filter.Env) error {
	r.count = parseCounter(r.Value(0), r.Value(1))
	return nil
}

func (r *hasRepositoryCount) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	src, ok := obj.(*genealogy.Source)
	return ok && r.count.test(len(src.RepoRefList))
}

type hasCallNumber struct{ filter.Base }

func (r *hasCallNumber) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	src, ok := obj.(*genealogy.Source)
	if !ok || r.Value(0) == "" {
		return false
	}
	for _, ref := range src.RepoRefList {
		if r.MatchSubstring(0, ref.CallNumber) {
			return true
		}
	}
	return false
}

type matchesRepositoryFilter struct {
	filter.Base
	nested
}

func (r *matchesRepositoryFilter) Prepare(ctx context.Context, env *filter.Env) error {
	return r.prepare(ctx, env, genealogy.NSRepository, r.Value(0))
}

func (r *matchesRepositoryFilter) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	src, ok := obj.(*genealogy.Source)
	if !ok || r.sub == nil {
		return false
	}
	for _, ref := range src.RepoRefList {
		repo, err := genealogy.GetRepository(ctx, db, ref.Handle)
		if err == nil && r.check(ctx, db, repo) {
			return true
		}
	}
	return false
}

func (r *matchesRepositoryFilter) Reset() { r.reset() }
