package rules

import (
	"context"
	"strconv"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func relationshipRules() []filter.RuleInfo {
	p := genealogy.NSPerson
	return []filter.RuleInfo{
		define(ruleDef{ns: p, name: "IsAncestorOf", labels: []string{"ID:", "Inclusive:"}, category: catAncestral,
			description: "Matches people that are ancestors of a specified person"},
			func(b filter.Base) filter.Rule { return &lineageOf{Base: b, walk: walkAncestors} }),
		define(ruleDef{ns: p, name: "IsDescendantOf", labels: []string{"ID:", "Inclusive:"}, category: catDescendant,
			description: "Matches all descendants for the specified person"},
			func(b filter.Base) filter.Rule { return &lineageOf{Base: b, walk: walkDescendants} }),
		define(ruleDef{ns: p, name: "IsAncestorOfFilterMatch", labels: []string{"Filter name:", "Inclusive:"}, category: catAncestral,
			description: "Matches people that are ancestors of anybody matched by a filter"},
			func(b filter.Base) filter.Rule { return &lineageOf{Base: b, walk: walkAncestors, byFilter: true} }),
		define(ruleDef{ns: p, name: "IsDescendantOfFilterMatch", labels: []string{"Filter name:", "Inclusive:"}, category: catDescendant,
			description: "Matches people that are descendants of anybody matched by a filter"},
			func(b filter.Base) filter.Rule { return &lineageOf{Base: b, walk: walkDescendants, byFilter: true} }),
		define(ruleDef{ns: p, name: "IsLessThanNthGenerationAncestorOf", labels: []string{"ID:", "Number of generations:"}, category: catAncestral,
			description: "Matches people that are ancestors of a specified person not more than N generations away"},
			func(b filter.Base) filter.Rule { return &generationsOf{Base: b, next: parentsOf} }),
		define(ruleDef{ns: p, name: "IsLessThanNthGenerationDescendantOf", labels: []string{"ID:", "Number of generations:"}, category: catDescendant,
			description: "Matches people that are descendants of a specified person not more than N generations away"},
			func(b filter.Base) filter.Rule { return &generationsOf{Base: b, next: childrenOf} }),
		define(ruleDef{ns: p, name: "HasCommonAncestorWith", labels: []string{"ID:"}, category: catAncestral,
			description: "Matches people that have a common ancestor with a specified person"},
			func(b filter.Base) filter.Rule { return &hasCommonAncestorWith{Base: b} }),
		define(ruleDef{ns: p, name: "HasCommonAncestorWithFilterMatch", labels: []string{"Filter name:"}, category: catAncestral,
			description: "Matches people that have a common ancestor with anybody matched by a filter"},
			func(b filter.Base) filter.Rule { return &hasCommonAncestorWith{Base: b, byFilter: true} }),
		define(ruleDef{ns: p, name: "IsMoreThanNthGenerationAncestorOf", labels: []string{"ID:", "Number of generations:"}, category: catAncestral,
			description: "Matches people that are ancestors of a specified person at least N generations away"},
			func(b filter.Base) filter.Rule { return &generationsOf{Base: b, next: parentsOf, atLeast: true} }),
		define(ruleDef{ns: p, name: "IsMoreThanNthGenerationDescendantOf", labels: []string{"ID:", "Number of generations:"}, category: catDescendant,
			description: "Matches people that are descendants of a specified person at least N generations away"},
			func(b filter.Base) filter.Rule { return &generationsOf{Base: b, next: childrenOf, atLeast: true} }),
		define(ruleDef{ns: p, name: "IsDescendantFamilyOf", labels: []string{"ID:", "Inclusive:"}, category: catDescendant,
			description: "Matches people that are descendants or the spouse of a descendant of a specified person"},
			func(b filter.Base) filter.Rule { return &isDescendantFamilyOf{Base: b} }),
		define(ruleDef{ns: p, name: "IsDuplicatedAncestorOf", labels: []string{"ID:"}, category: catAncestral,
			description: "Matches people that are ancestors twice or more of a specified person"},
			func(b filter.Base) filter.Rule { return &isDuplicatedAncestorOf{Base: b} }),
		define(ruleDef{ns: p, name: "IsRelatedWith", labels: []string{"ID:"}, category: catRelationship,
			description: "Matches people related to a specified person"},
			func(b filter.Base) filter.Rule { return &isRelatedWith{Base: b} }),
		define(ruleDef{ns: p, name: "RelationshipPathBetween", labels: []string{"ID:", "ID:"}, category: catRelationship,
			description: "Matches the ancestors of two people back to a common ancestor, producing the relationship path between them"},
			func(b filter.Base) filter.Rule { return &relationshipPathBetween{Base: b} }),
		define(ruleDef{ns: p, name: "RelationshipPathBetweenBookmarks", category: catRelationship,
			description: "Matches the ancestors of bookmarked people back to common ancestors, producing the relationship paths between them"},
			func(b filter.Base) filter.Rule { return &relationshipPathBetween{Base: b, bookmarks: true} }),

		define(ruleDef{ns: p, name: "IsChildOfFilterMatch", labels: []string{"Filter name:"}, category: catFamily,
			description: "Matches children of anybody matched by a filter"},
			func(b filter.Base) filter.Rule { return &relativesOf{Base: b, collect: childrenOf} }),
		define(ruleDef{ns: p, name: "IsParentOfFilterMatch", labels: []string{"Filter name:"}, category: catFamily,
			description: "Matches parents of anybody matched by a filter"},
			func(b filter.Base) filter.Rule { return &relativesOf{Base: b, collect: allParentsOf} }),
		define(ruleDef{ns: p, name: "IsSiblingOfFilterMatch", labels: []string{"Filter name:"}, category: catFamily,
			description: "Matches siblings of anybody matched by a filter"},
			func(b filter.Base) filter.Rule { return &relativesOf{Base: b, collect: siblingsOf} }),
		define(ruleDef{ns: p, name: "IsSpouseOfFilterMatch", labels: []string{"Filter name:"}, category: catFamily,
			description: "Matches people married to anybody matching a filter"},
			func(b filter.Base) filter.Rule { return &isSpouseOfFilterMatch{Base: b} }),
	}
}

// relatives returns the people one step away from p.
type relatives func(ctx context.Context, db genealogy.Database, p *genealogy.Person) []string

// parentsOf follows the main parent family only.
func parentsOf(ctx context.Context, db genealogy.Database, p *genealogy.Person) []string {
	fh := p.MainParents()
	if fh == "" {
		return nil
	}
	return familyParents(ctx, db, fh)
}

func allParentsOf(ctx context.Context, db genealogy.Database, p *genealogy.Person) []string {
	var out []string
	for _, fh := range p.ParentFamilyList {
		out = append(out, familyParents(ctx, db, fh)...)
	}
	return out
}

func familyParents(ctx context.Context, db genealogy.Database, fh string) []string {
	fam, err := genealogy.GetFamily(ctx, db, fh)
	if err != nil {
		return nil
	}
	var out []string
	for _, h := range []string{fam.FatherHandle, fam.MotherHandle} {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func childrenOf(ctx context.Context, db genealogy.Database, p *genealogy.Person) []string {
	var out []string
	for _, fh := range p.FamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err != nil {
			continue
		}
		for _, c := range fam.ChildRefList {
			out = append(out, c.Handle)
		}
	}
	return out
}

func siblingsOf(ctx context.Context, db genealogy.Database, p *genealogy.Person) []string {
	fh := p.MainParents()
	if fh == "" {
		return nil
	}
	fam, err := genealogy.GetFamily(ctx, db, fh)
	if err != nil {
		return nil
	}
	var out []string
	for _, c := range fam.ChildRefList {
		if c.Handle != p.Handle {
			out = append(out, c.Handle)
		}
	}
	return out
}

type walker func(ctx context.Context, db genealogy.Database, root string, inclusive bool, into map[string]bool)

func walkAncestors(ctx context.Context, db genealogy.Database, root string, inclusive bool, into map[string]bool) {
	walk(ctx, db, root, inclusive, into, parentsOf)
}

func walkDescendants(ctx context.Context, db genealogy.Database, root string, inclusive bool, into map[string]bool) {
	walk(ctx, db, root, inclusive, into, childrenOf)
}

// walk adds everyone reachable from root through next. The visited set
// guards against loops in malformed trees.
func walk(ctx context.Context, db genealogy.Database, root string, inclusive bool, into map[string]bool, next relatives) {
	if inclusive {
		into[root] = true
	}
	visited := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		p, err := genealogy.GetPerson(ctx, db, h)
		if err != nil {
			continue
		}
		for _, rel := range next(ctx, db, p) {
			if visited[rel] {
				continue
			}
			visited[rel] = true
			into[rel] = true
			queue = append(queue, rel)
		}
	}
}

// lineageOf matches the ancestors or descendants of one person, or of every
// person a named filter matches.
type lineageOf struct {
	filter.Base
	walk     walker
	byFilter bool
	members  map[string]bool
}

func (r *lineageOf) Prepare(ctx context.Context, env *filter.Env) error {
	r.members = make(map[string]bool)
	inclusive := isTrue(r.Value(1))

	var roots []string
	if r.byFilter {
		matched, err := matchSet(ctx, env, genealogy.NSPerson, r.Value(0))
		if err != nil {
			return err
		}
		roots = matched
	} else {
		id := r.Value(0)
		if id == "" {
			return nil
		}
		root, err := env.DB.GetByID(ctx, genealogy.NSPerson, id)
		if err != nil {
			if lookupMiss(err) {
				return nil
			}
			return err
		}
		roots = []string{root.Base().Handle}
	}

	for _, h := range roots {
		r.walk(ctx, env.DB, h, inclusive, r.members)
	}
	return nil
}

func (r *lineageOf) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.members[obj.Base().Handle]
}

func (r *lineageOf) Reset() { r.members = nil }

// generationsOf matches people within N generations of the root, counting
// the root itself as generation 1. With atLeast set it matches generation N
// and beyond instead.
type generationsOf struct {
	filter.Base
	next    relatives
	atLeast bool
	members map[string]bool
}

func (r *generationsOf) Prepare(ctx context.Context, env *filter.Env) error {
	r.members = make(map[string]bool)
	limit, err := strconv.Atoi(r.Value(1))
	if err != nil || r.Value(0) == "" {
		return nil
	}
	root, err := env.DB.GetByID(ctx, genealogy.NSPerson, r.Value(0))
	if err != nil {
		if lookupMiss(err) {
			return nil
		}
		return err
	}

	type step struct {
		handle string
		gen    int
	}
	seen := make(map[string]bool)
	queue := []step{{root.Base().Handle, 1}}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s.handle] || (!r.atLeast && s.gen > limit) {
			continue
		}
		seen[s.handle] = true
		if !r.atLeast || s.gen >= limit {
			r.members[s.handle] = true
		}
		if !r.atLeast && s.gen == limit {
			continue
		}
		p, err := genealogy.GetPerson(ctx, env.DB, s.handle)
		if err != nil {
			continue
		}
		for _, rel := range r.next(ctx, env.DB, p) {
			queue = append(queue, step{rel, s.gen + 1})
		}
	}
	return nil
}

func (r *generationsOf) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.members[obj.Base().Handle]
}

func (r *generationsOf) Reset() { r.members = nil }

// hasCommonAncestorWith compares ancestor sets, each including the person
// itself, through every parent family. Candidate sets are memoized. With
// byFilter the root set is the union over everyone a named filter matches.
type hasCommonAncestorWith struct {
	filter.Base
	byFilter      bool
	rootAncestors map[string]bool
	cache         map[string]map[string]bool
}

func (r *hasCommonAncestorWith) Prepare(ctx context.Context, env *filter.Env) error {
	r.rootAncestors = nil
	r.cache = make(map[string]map[string]bool)
	if r.byFilter {
		matched, err := matchSet(ctx, env, genealogy.NSPerson, r.Value(0))
		if err != nil {
			return err
		}
		r.rootAncestors = make(map[string]bool)
		for _, h := range matched {
			for a := range r.ancestors(ctx, env.DB, h) {
				r.rootAncestors[a] = true
			}
		}
		return nil
	}
	id := r.Value(0)
	if id == "" {
		return nil
	}
	root, err := env.DB.GetByID(ctx, genealogy.NSPerson, id)
	if err != nil {
		if lookupMiss(err) {
			return nil
		}
		return err
	}
	r.rootAncestors = r.ancestors(ctx, env.DB, root.Base().Handle)
	return nil
}

func (r *hasCommonAncestorWith) ancestors(ctx context.Context, db genealogy.Database, handle string) map[string]bool {
	if set, ok := r.cache[handle]; ok {
		return set
	}
	set := make(map[string]bool)
	walk(ctx, db, handle, true, set, allParentsOf)
	if r.cache != nil {
		r.cache[handle] = set
	}
	return set
}

func (r *hasCommonAncestorWith) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	if len(r.rootAncestors) == 0 {
		return false
	}
	for h := range r.ancestors(ctx, db, obj.Base().Handle) {
		if r.rootAncestors[h] {
			return true
		}
	}
	return false
}

func (r *hasCommonAncestorWith) Reset() {
	r.rootAncestors = nil
	r.cache = nil
}

// relativesOf matches the children, parents or siblings of everyone a named
// person filter matches.
type relativesOf struct {
	filter.Base
	collect relatives
	members map[string]bool
}

func (r *relativesOf) Prepare(ctx context.Context, env *filter.Env) error {
	r.members = make(map[string]bool)
	matched, err := matchSet(ctx, env, genealogy.NSPerson, r.Value(0))
	if err != nil {
		return err
	}
	for _, h := range matched {
		p, err := genealogy.GetPerson(ctx, env.DB, h)
		if err != nil {
			continue
		}
		for _, rel := range r.collect(ctx, env.DB, p) {
			r.members[rel] = true
		}
	}
	return nil
}

func (r *relativesOf) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.members[obj.Base().Handle]
}

func (r *relativesOf) Reset() { r.members = nil }

// isSpouseOfFilterMatch checks each spouse against the prepared filter.
type isSpouseOfFilterMatch struct {
	filter.Base
	nested
}

func (r *isSpouseOfFilterMatch) Prepare(ctx context.Context, env *filter.Env) error {
	return r.prepare(ctx, env, genealogy.NSPerson, r.Value(0))
}

func (r *isSpouseOfFilterMatch) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok || r.sub == nil {
		return false
	}
	for _, fh := range p.FamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err != nil {
			continue
		}
		spouse := fam.Spouse(p.Handle)
		if spouse == "" || spouse == p.Handle {
			continue
		}
		sp, err := genealogy.GetPerson(ctx, db, spouse)
		if err == nil && r.check(ctx, db, sp) {
			return true
		}
	}
	return false
}

func (r *isSpouseOfFilterMatch) Reset() { r.reset() }

// rootHandle resolves a person ID value. An empty or unknown ID yields "".
func rootHandle(ctx context.Context, env *filter.Env, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	root, err := env.DB.GetByID(ctx, genealogy.NSPerson, id)
	if err != nil {
		if lookupMiss(err) {
			return "", nil
		}
		return "", err
	}
	return root.Base().Handle, nil
}

func spousesOf(ctx context.Context, db genealogy.Database, p *genealogy.Person) []string {
	var out []string
	for _, fh := range p.FamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err != nil {
			continue
		}
		if s := fam.Spouse(p.Handle); s != "" && s != p.Handle {
			out = append(out, s)
		}
	}
	return out
}

// isDescendantFamilyOf matches descendants and their spouses. The root and
// its spouses count only when the rule is inclusive.
type isDescendantFamilyOf struct {
	filter.Base
	members map[string]bool
}

func (r *isDescendantFamilyOf) Prepare(ctx context.Context, env *filter.Env) error {
	r.members = make(map[string]bool)
	root, err := rootHandle(ctx, env, r.Value(0))
	if err != nil || root == "" {
		return err
	}
	descendants := make(map[string]bool)
	walkDescendants(ctx, env.DB, root, isTrue(r.Value(1)), descendants)
	for h := range descendants {
		r.members[h] = true
		p, err := genealogy.GetPerson(ctx, env.DB, h)
		if err != nil {
			continue
		}
		for _, s := range spousesOf(ctx, env.DB, p) {
			r.members[s] = true
		}
	}
	return nil
}

func (r *isDescendantFamilyOf) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.members[obj.Base().Handle]
}

func (r *isDescendantFamilyOf) Reset() { r.members = nil }

// isDuplicatedAncestorOf matches ancestors reachable along more than one
// main-parent line. Each person is expanded at most twice, so loops in a
// malformed tree terminate.
type isDuplicatedAncestorOf struct {
	filter.Base
	members map[string]bool
}

func (r *isDuplicatedAncestorOf) Prepare(ctx context.Context, env *filter.Env) error {
	r.members = make(map[string]bool)
	root, err := rootHandle(ctx, env, r.Value(0))
	if err != nil || root == "" {
		return err
	}
	seen := map[string]bool{}
	stack := []string{root}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch {
		case !seen[h]:
			seen[h] = true
		case !r.members[h]:
			r.members[h] = true
		default:
			continue
		}
		p, err := genealogy.GetPerson(ctx, env.DB, h)
		if err != nil {
			continue
		}
		stack = append(stack, parentsOf(ctx, env.DB, p)...)
	}
	return nil
}

func (r *isDuplicatedAncestorOf) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.members[obj.Base().Handle]
}

func (r *isDuplicatedAncestorOf) Reset() { r.members = nil }

// isRelatedWith matches everyone connected to the root, the root included,
// through parent, sibling, spouse and child links.
type isRelatedWith struct {
	filter.Base
	members map[string]bool
}

func (r *isRelatedWith) Prepare(ctx context.Context, env *filter.Env) error {
	r.members = make(map[string]bool)
	root, err := rootHandle(ctx, env, r.Value(0))
	if err != nil || root == "" {
		return err
	}
	walk(ctx, env.DB, root, true, r.members, familyMembersOf)
	return nil
}

func (r *isRelatedWith) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.members[obj.Base().Handle]
}

func (r *isRelatedWith) Reset() { r.members = nil }

// familyMembersOf lists every parent and child of each family p belongs to.
func familyMembersOf(ctx context.Context, db genealogy.Database, p *genealogy.Person) []string {
	var out []string
	for _, list := range [][]string{p.ParentFamilyList, p.FamilyList} {
		for _, fh := range list {
			fam, err := genealogy.GetFamily(ctx, db, fh)
			if err != nil {
				continue
			}
			for _, h := range []string{fam.FatherHandle, fam.MotherHandle} {
				if h != "" {
					out = append(out, h)
				}
			}
			for _, c := range fam.ChildRefList {
				out = append(out, c.Handle)
			}
		}
	}
	return out
}

// relationshipPathBetween matches the people on the main-parent lines from
// two people up to their nearest common ancestors. The bookmark variant
// joins every pair of bookmarked people.
type relationshipPathBetween struct {
	filter.Base
	bookmarks bool
	members   map[string]bool
}

func (r *relationshipPathBetween) Prepare(ctx context.Context, env *filter.Env) error {
	r.members = make(map[string]bool)
	var people []string
	if r.bookmarks {
		marked, err := env.DB.Bookmarks(ctx, genealogy.NSPerson)
		if err != nil {
			return err
		}
		people = marked
	} else {
		for i := 0; i < 2; i++ {
			h, err := rootHandle(ctx, env, r.Value(i))
			if err != nil || h == "" {
				return err
			}
			people = append(people, h)
		}
	}
	for i := range people {
		for j := i + 1; j < len(people); j++ {
			relationshipPath(ctx, env.DB, people[i], people[j], r.members)
		}
	}
	return nil
}

func (r *relationshipPathBetween) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.members[obj.Base().Handle]
}

func (r *relationshipPathBetween) Reset() { r.members = nil }

// relationshipPath adds a, b, their nearest common ancestors and everyone
// between them to into. Nothing is added when the two share no ancestor.
func relationshipPath(ctx context.Context, db genealogy.Database, a, b string, into map[string]bool) {
	ranksA := ancestorRanks(ctx, db, a)
	ranksB := ancestorRanks(ctx, db, b)

	best := -1
	var common []string
	for h, rank := range ranksA {
		if _, ok := ranksB[h]; !ok {
			continue
		}
		switch {
		case best < 0 || rank < best:
			best, common = rank, []string{h}
		case rank == best:
			common = append(common, h)
		}
	}
	if len(common) == 0 {
		return
	}

	below := make(map[string]bool)
	for _, h := range common {
		into[h] = true
		walk(ctx, db, h, false, below, childrenOf)
	}
	into[a], into[b] = true, true
	for _, ranks := range []map[string]int{ranksA, ranksB} {
		for h := range ranks {
			if below[h] {
				into[h] = true
			}
		}
	}
}

// ancestorRanks maps the person and each main-parent ancestor to its
// generation distance, 0 for the person.
func ancestorRanks(ctx context.Context, db genealogy.Database, handle string) map[string]int {
	ranks := map[string]int{handle: 0}
	queue := []string{handle}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		p, err := genealogy.GetPerson(ctx, db, h)
		if err != nil {
			continue
		}
		for _, parent := range parentsOf(ctx, db, p) {
			if _, ok := ranks[parent]; ok {
				continue
			}
			ranks[parent] = ranks[h] + 1
			queue = append(queue, parent)
		}
	}
	return ranks
}
