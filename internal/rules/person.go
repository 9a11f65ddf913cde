package rules

import (
	"context"
	"strconv"
	"strings"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

const (
	eventBirth = "Birth"
	eventDeath = "Death"
)

var nameLabels = []string{"Given name:", "Family name:", "Title:", "Suffix:", "Call name:", "Nick name:"}

func personRules() []filter.RuleInfo {
	p := genealogy.NSPerson
	return []filter.RuleInfo{
		define(ruleDef{ns: p, name: "IsMale", category: catGeneral, description: "Matches all males"},
			func(b filter.Base) filter.Rule { return &hasGender{Base: b, gender: genealogy.GenderMale} }),
		define(ruleDef{ns: p, name: "IsFemale", category: catGeneral, description: "Matches all females"},
			func(b filter.Base) filter.Rule { return &hasGender{Base: b, gender: genealogy.GenderFemale} }),
		define(ruleDef{ns: p, name: "HasUnknownGender", category: catGeneral, description: "Matches all people with unknown gender"},
			func(b filter.Base) filter.Rule { return &hasGender{Base: b, gender: genealogy.GenderUnknown} }),

		define(ruleDef{ns: p, name: "HasNameOf", labels: nameLabels, category: catGeneral, allowRegex: true,
			description: "Matches people with a specified (partial) name"},
			func(b filter.Base) filter.Rule { return &hasNameOf{Base: b} }),
		define(ruleDef{ns: p, name: "RegExpName", labels: []string{"Expression:"}, category: catGeneral, forceRegex: true,
			description: "Matches people's names containing a substring or matching a regular expression"},
			func(b filter.Base) filter.Rule { return &searchName{Base: b} }),
		define(ruleDef{ns: p, name: "SearchName", labels: []string{"Substring:"}, category: catGeneral,
			description: "Matches people with a specified (partial) name"},
			func(b filter.Base) filter.Rule { return &searchName{Base: b} }),
		define(ruleDef{ns: p, name: "HasAlternateName", category: catGeneral, description: "Matches people with an alternate name"},
			func(b filter.Base) filter.Rule { return &hasAlternateName{Base: b} }),
		define(ruleDef{ns: p, name: "HasNickname", category: catGeneral, description: "Matches people with a nickname"},
			func(b filter.Base) filter.Rule { return &hasNickname{Base: b} }),
		define(ruleDef{ns: p, name: "IncompleteNames", category: catGeneral, description: "Matches people with firstname or lastname missing"},
			func(b filter.Base) filter.Rule { return &incompleteNames{Base: b} }),

		define(ruleDef{ns: p, name: "HasBirth", labels: []string{"Date:", "Place:", "Description:"}, category: catEvent, allowRegex: true,
			description: "Matches people with birth data of a particular value"},
			func(b filter.Base) filter.Rule { return newVitalEvent(b, eventBirth) }),
		define(ruleDef{ns: p, name: "HasDeath", labels: []string{"Date:", "Place:", "Description:"}, category: catEvent, allowRegex: true,
			description: "Matches people with death data of a particular value"},
			func(b filter.Base) filter.Rule { return newVitalEvent(b, eventDeath) }),
		define(ruleDef{ns: p, name: "NoBirthdate", category: catGeneral, description: "Matches people without a known birthdate"},
			func(b filter.Base) filter.Rule { return &noVitalDate{Base: b, birth: true} }),
		define(ruleDef{ns: p, name: "NoDeathdate", category: catGeneral, description: "Matches people without a known deathdate"},
			func(b filter.Base) filter.Rule { return &noVitalDate{Base: b} }),
		define(ruleDef{ns: p, name: "HasEvent", labels: []string{"Event type:", "Date:", "Place:", "Description:"}, category: catEvent, allowRegex: true,
			description: "Matches people with a personal event of a particular value"},
			func(b filter.Base) filter.Rule { return &hasPersonEvent{Base: b, fields: allEventFields()} }),
		define(ruleDef{ns: p, name: "HasFamilyEvent", labels: []string{"Family event:", "Date:", "Place:", "Description:"}, category: catEvent, allowRegex: true,
			description: "Matches people with a family event of a particular value"},
			func(b filter.Base) filter.Rule { return &hasFamilyEvent{Base: b, fields: allEventFields()} }),
		define(ruleDef{ns: p, name: "HasFamilyAttribute", labels: []string{"Family attribute:", "Value:"}, category: catGeneral,
			description: "Matches people with the family attribute of a particular value"},
			func(b filter.Base) filter.Rule { return &hasFamilyAttribute{Base: b} }),
		define(ruleDef{ns: p, name: "HasRelationship", labels: []string{"Number of relationships:", "Relationship type:", "Number of children:"}, category: catFamily,
			description: "Matches people with a particular relationship"},
			func(b filter.Base) filter.Rule { return &hasRelationship{Base: b} }),

		define(ruleDef{ns: p, name: "HaveChildren", category: catFamily, description: "Matches people who have children"},
			func(b filter.Base) filter.Rule { return &haveChildren{Base: b} }),
		define(ruleDef{ns: p, name: "NeverMarried", category: catFamily, description: "Matches people who have no spouse"},
			func(b filter.Base) filter.Rule {
				return &familyCount{Base: b, test: func(n int) bool { return n == 0 }}
			}),
		define(ruleDef{ns: p, name: "MultipleMarriages", category: catFamily, description: "Matches people who have more than one spouse"},
			func(b filter.Base) filter.Rule { return &familyCount{Base: b, test: func(n int) bool { return n > 1 }} }),
		define(ruleDef{ns: p, name: "MissingParent", category: catFamily,
			description: "Matches people that are children in a family with less than two parents or are not children in any family"},
			func(b filter.Base) filter.Rule { return &missingParent{Base: b} }),
		define(ruleDef{ns: p, name: "HaveAltFamilies", category: catFamily, description: "Matches people who were adopted"},
			func(b filter.Base) filter.Rule { return &haveAltFamilies{Base: b} }),
		define(ruleDef{ns: p, name: "Disconnected", category: catGeneral,
			description: "Matches people that have no family relationships to any other person"},
			func(b filter.Base) filter.Rule { return &disconnected{Base: b} }),
		define(ruleDef{ns: p, name: "IsDefaultPerson", category: catGeneral, description: "Matches the default person"},
			func(b filter.Base) filter.Rule { return &isDefaultPerson{Base: b} }),
		define(ruleDef{ns: p, name: "PeoplePublic", category: catGeneral, description: "Matches people not marked private"},
			func(b filter.Base) filter.Rule { return &peoplePublic{Base: b} }),
		define(ruleDef{ns: p, name: "HasCompleteRecord", category: catGeneral, description: "Matches all people whose records are complete"},
			func(b filter.Base) filter.Rule { return &hasCompleteRecord{Base: b} }),
		define(ruleDef{ns: p, name: "PersonWithIncompleteEvent", category: catEvent,
			description: "Matches people with missing date or place in an event"},
			func(b filter.Base) filter.Rule { return &incompleteEvent{Base: b} }),
		define(ruleDef{ns: p, name: "FamilyWithIncompleteEvent", category: catEvent,
			description: "Matches people with missing date or place in an event of the family"},
			func(b filter.Base) filter.Rule { return &incompleteEvent{Base: b, family: true} }),
		define(ruleDef{ns: p, name: "HasTextMatchingSubstringOf",
			labels:      []string{"Substring:", "Case sensitive:", "Regular-Expression matching:"},
			category:    catGeneral,
			description: "Matches people whose records contain text matching a substring"},
			func(b filter.Base) filter.Rule { return &hasTextMatching{Base: b} }),
		define(ruleDef{ns: p, name: "MatchesEventFilter", labels: []string{"Event filter name:"}, category: catEvent,
			description: "Matches people who have events matching a certain event filter"},
			func(b filter.Base) filter.Rule { return &matchesEventFilter{Base: b} }),
	}
}

func allEventFields() eventFields { return eventFields{typ: 0, date: 1, place: 2, desc: 3} }

type hasGender struct {
	filter.Base
	gender genealogy.Gender
}

func (r *hasGender) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	return ok && p.Gender == r.gender
}

// hasNameOf requires every non-empty value to match the same name.
type hasNameOf struct{ filter.Base }

func (r *hasNameOf) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok || allEmpty(&r.Base) {
		return false
	}
	for _, n := range p.Names() {
		fields := []string{n.FirstName, n.Surname, n.Title, n.Suffix, n.Call, n.Nick}
		matched := true
		for i, text := range fields {
			if r.Value(i) != "" && !r.MatchSubstring(i, text) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// searchName matches any part of any of the person's names.
type searchName struct{ filter.Base }

func (r *searchName) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok || r.Value(0) == "" {
		return false
	}
	m := r.Matcher(0)
	for _, n := range p.Names() {
		if m.Match(n.FullName()) || m.MatchAny(n.Fields()...) {
			return true
		}
	}
	return false
}

type hasAlternateName struct{ filter.Base }

func (r *hasAlternateName) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	return ok && len(p.AlternateNames) > 0
}

type hasNickname struct{ filter.Base }

func (r *hasNickname) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	for _, n := range p.Names() {
		if n.Nick != "" {
			return true
		}
	}
	return false
}

type incompleteNames struct{ filter.Base }

func (r *incompleteNames) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	for _, n := range p.Names() {
		if strings.TrimSpace(n.FirstName) == "" || strings.TrimSpace(n.Surname) == "" {
			return true
		}
	}
	return false
}

// vitalEvent matches birth or death events in which the person has the
// primary role. With no values set any such event matches.
type vitalEvent struct {
	filter.Base
	eventType string
	fields    eventFields
}

func newVitalEvent(b filter.Base, eventType string) *vitalEvent {
	return &vitalEvent{Base: b, eventType: eventType, fields: eventFields{typ: -1, date: 0, place: 1, desc: 2}}
}

func (r *vitalEvent) Prepare(context.Context, *filter.Env) error {
	r.fields.prepare(&r.Base)
	return nil
}

func (r *vitalEvent) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	return r.fields.anyEvent(ctx, db, &r.Base, p.EventRefList, func(ref genealogy.EventRef, ev *genealogy.Event) bool {
		return ref.IsPrimaryRole() && strings.EqualFold(ev.Type, r.eventType)
	})
}

type noVitalDate struct {
	filter.Base
	birth bool
}

func (r *noVitalDate) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	ref := p.DeathRef
	if r.birth {
		ref = p.BirthRef
	}
	if ref == "" {
		return true
	}
	ev, err := genealogy.GetEvent(ctx, db, ref)
	if err != nil {
		return true
	}
	return ev.Date.IsEmpty()
}

type hasPersonEvent struct {
	filter.Base
	fields eventFields
}

func (r *hasPersonEvent) Prepare(context.Context, *filter.Env) error {
	r.fields.prepare(&r.Base)
	return nil
}

func (r *hasPersonEvent) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	holder, ok := obj.(genealogy.EventHolder)
	if !ok {
		return false
	}
	return r.fields.anyEvent(ctx, db, &r.Base, holder.EventRefs(), nil)
}

type hasFamilyEvent struct {
	filter.Base
	fields eventFields
}

func (r *hasFamilyEvent) Prepare(context.Context, *filter.Env) error {
	r.fields.prepare(&r.Base)
	return nil
}

func (r *hasFamilyEvent) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	for _, fh := range p.FamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err != nil {
			continue
		}
		if r.fields.anyEvent(ctx, db, &r.Base, fam.EventRefList, nil) {
			return true
		}
	}
	return false
}

type hasFamilyAttribute struct{ filter.Base }

func (r *hasFamilyAttribute) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok || r.Value(0) == "" {
		return false
	}
	for _, fh := range p.FamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err == nil && matchAttributes(&r.Base, fam.AttributeList) {
			return true
		}
	}
	return false
}

// hasRelationship checks the exact number of families, a relationship type
// present in any of them and the total number of children. Unset values are
// not checked.
type hasRelationship struct{ filter.Base }

func (r *hasRelationship) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	children := 0
	typeFound := false
	relType := r.Value(1)
	for _, fh := range p.FamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err != nil {
			continue
		}
		children += len(fam.ChildRefList)
		if relType != "" && strings.EqualFold(fam.Type, relType) {
			typeFound = true
		}
	}
	if v := r.Value(0); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n != len(p.FamilyList) {
			return false
		}
	}
	if v := r.Value(2); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n != children {
			return false
		}
	}
	return relType == "" || typeFound
}

type haveChildren struct{ filter.Base }

func (r *haveChildren) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	for _, fh := range p.FamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err == nil && len(fam.ChildRefList) > 0 {
			return true
		}
	}
	return false
}

type familyCount struct {
	filter.Base
	test func(int) bool
}

func (r *familyCount) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	return ok && r.test(len(p.FamilyList))
}

type missingParent struct{ filter.Base }

func (r *missingParent) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	if len(p.ParentFamilyList) == 0 {
		return true
	}
	for _, fh := range p.ParentFamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err != nil {
			continue
		}
		if fam.FatherHandle == "" || fam.MotherHandle == "" {
			return true
		}
	}
	return false
}

// haveAltFamilies matches children whose relation to a parent family is
// anything other than birth.
type haveAltFamilies struct{ filter.Base }

func (r *haveAltFamilies) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	for _, fh := range p.ParentFamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err != nil {
			continue
		}
		for _, c := range fam.ChildRefList {
			if c.Handle == p.Handle && !c.IsBirth() {
				return true
			}
		}
	}
	return false
}

type disconnected struct{ filter.Base }

func (r *disconnected) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	return ok && len(p.FamilyList) == 0 && len(p.ParentFamilyList) == 0
}

type isDefaultPerson struct {
	filter.Base
	handle string
}

func (r *isDefaultPerson) Prepare(ctx context.Context, env *filter.Env) error {
	h, err := env.DB.DefaultPersonHandle(ctx)
	if err != nil {
		return err
	}
	r.handle = h
	return nil
}

func (r *isDefaultPerson) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.handle != "" && obj.Base().Handle == r.handle
}

func (r *isDefaultPerson) Reset() { r.handle = "" }

// hasTextMatching searches the person's own text and the text of the events,
// places, families, media and sources they reference. Matching sources are
// collected up front; the other lookups are memoized per evaluation.
type hasTextMatching struct {
	filter.Base
	m *filter.TextMatcher

	sources  map[string]bool
	events   map[string]bool
	places   map[string]bool
	families map[string]bool
	media    map[string]bool
}

func (r *hasTextMatching) Prepare(ctx context.Context, env *filter.Env) error {
	r.m = nil
	text := r.Value(0)
	if text == "" {
		return nil
	}
	flags := filter.Flags{
		UseCase:  r.Flags().UseCase || isTrue(r.Value(1)),
		UseRegex: r.Flags().UseRegex || isTrue(r.Value(2)),
	}
	r.m = filter.NewTextMatcher(text, flags)
	r.sources = make(map[string]bool)
	r.events = make(map[string]bool)
	r.places = make(map[string]bool)
	r.families = make(map[string]bool)
	r.media = make(map[string]bool)

	return env.DB.Iterate(ctx, genealogy.NSSource, func(obj genealogy.Object) error {
		if r.m.MatchAny(obj.TextData()...) {
			r.sources[obj.Base().Handle] = true
		}
		return nil
	})
}

func (r *hasTextMatching) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok || r.m == nil {
		return false
	}
	if r.m.MatchAny(p.TextData()...) {
		return true
	}
	for _, ref := range p.EventRefList {
		if r.eventMatches(ctx, db, ref.Handle) {
			return true
		}
	}
	for _, fh := range p.FamilyList {
		if r.familyMatches(ctx, db, fh) {
			return true
		}
	}
	for _, m := range p.MediaList {
		if r.memo(ctx, db, r.media, genealogy.NSMedia, m.Handle) {
			return true
		}
	}
	return r.citesMatchingSource(ctx, db, p.CitationList)
}

func (r *hasTextMatching) eventMatches(ctx context.Context, db genealogy.Database, handle string) bool {
	if matched, seen := r.events[handle]; seen {
		return matched
	}
	matched := false
	if ev, err := genealogy.GetEvent(ctx, db, handle); err == nil {
		matched = r.m.MatchAny(ev.TextData()...) ||
			(ev.Place != "" && r.memo(ctx, db, r.places, genealogy.NSPlace, ev.Place)) ||
			r.citesMatchingSource(ctx, db, ev.CitationList)
	}
	r.events[handle] = matched
	return matched
}

func (r *hasTextMatching) familyMatches(ctx context.Context, db genealogy.Database, handle string) bool {
	if matched, seen := r.families[handle]; seen {
		return matched
	}
	matched := false
	if fam, err := genealogy.GetFamily(ctx, db, handle); err == nil {
		matched = r.m.MatchAny(fam.TextData()...)
		for _, ref := range fam.EventRefList {
			if matched {
				break
			}
			matched = r.eventMatches(ctx, db, ref.Handle)
		}
		matched = matched || r.citesMatchingSource(ctx, db, fam.CitationList)
	}
	r.families[handle] = matched
	return matched
}

func (r *hasTextMatching) memo(ctx context.Context, db genealogy.Database, cache map[string]bool, ns genealogy.Namespace, handle string) bool {
	if matched, seen := cache[handle]; seen {
		return matched
	}
	matched := false
	if obj, err := db.Get(ctx, ns, handle); err == nil {
		matched = r.m.MatchAny(obj.TextData()...)
	}
	cache[handle] = matched
	return matched
}

func (r *hasTextMatching) citesMatchingSource(ctx context.Context, db genealogy.Database, citations []string) bool {
	if len(r.sources) == 0 {
		return false
	}
	for _, ch := range citations {
		c, err := genealogy.GetCitation(ctx, db, ch)
		if err == nil && r.sources[c.SourceHandle] {
			return true
		}
	}
	return false
}

func (r *hasTextMatching) Reset() {
	r.m = nil
	r.sources, r.events, r.places, r.families, r.media = nil, nil, nil, nil, nil
}

// matchesEventFilter matches people and families referencing an event the
// named event filter matches.
type matchesEventFilter struct {
	filter.Base
	events map[string]bool
}

func (r *matchesEventFilter) Prepare(ctx context.Context, env *filter.Env) error {
	handles, err := matchSet(ctx, env, genealogy.NSEvent, r.Value(0))
	if err != nil {
		return err
	}
	r.events = toSet(handles)
	return nil
}

func (r *matchesEventFilter) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	holder, ok := obj.(genealogy.EventHolder)
	if !ok {
		return false
	}
	for _, ref := range holder.EventRefs() {
		if r.events[ref.Handle] {
			return true
		}
	}
	return false
}

func (r *matchesEventFilter) Reset() { r.events = nil }

type peoplePublic struct{ filter.Base }

func (r *peoplePublic) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	_, ok := obj.(*genealogy.Person)
	return ok && !obj.Base().Private
}

type hasCompleteRecord struct{ filter.Base }

func (r *hasCompleteRecord) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	return ok && p.Complete
}

// incompleteEvent matches people with an event lacking a date or a place,
// among their own events or, with family set, those of the families they
// head.
type incompleteEvent struct {
	filter.Base
	family bool
}

func (r *incompleteEvent) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	p, ok := obj.(*genealogy.Person)
	if !ok {
		return false
	}
	if !r.family {
		return hasIncompleteEvent(ctx, db, p.EventRefList)
	}
	for _, fh := range p.FamilyList {
		fam, err := genealogy.GetFamily(ctx, db, fh)
		if err == nil && hasIncompleteEvent(ctx, db, fam.EventRefList) {
			return true
		}
	}
	return false
}

func hasIncompleteEvent(ctx context.Context, db genealogy.Database, refs []genealogy.EventRef) bool {
	for _, ref := range refs {
		ev, err := genealogy.GetEvent(ctx, db, ref.Handle)
		if err != nil {
			continue
		}
		if ev.Place == "" || ev.Date.IsEmpty() {
			return true
		}
	}
	return false
}
