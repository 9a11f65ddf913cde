package rules

import (
	"context"
	"strconv"
	"strings"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func eventRules() []filter.RuleInfo {
	e := genealogy.NSEvent
	return []filter.RuleInfo{
		define(ruleDef{ns: e, name: "HasType", labels: []string{"Event type:"}, category: catGeneral,
			description: "Matches events with the particular type"},
			func(b filter.Base) filter.Rule { return &hasEventType{Base: b} }),
		define(ruleDef{ns: e, name: "HasData", labels: []string{"Event type:", "Date:", "Place:", "Description:"}, category: catGeneral, allowRegex: true,
			description: "Matches events with data of a particular value"},
			func(b filter.Base) filter.Rule { return &hasEventData{Base: b, fields: allEventFields()} }),
		define(ruleDef{ns: e, name: "HasDayOfWeek", labels: []string{"Day of Week:"}, category: catGeneral,
			description: "Matches events occurring on a particular day of the week"},
			func(b filter.Base) filter.Rule { return &hasDayOfWeek{Base: b} }),
		define(ruleDef{ns: e, name: "MatchesPersonFilter", labels: []string{"Filter name:", "Include Family events:"}, category: catGeneral,
			description: "Matches events of people matched by the specified person filter name"},
			func(b filter.Base) filter.Rule { return &matchesPersonFilter{Base: b} }),
		define(ruleDef{ns: e, name: "MatchesPlaceFilter", labels: []string{"Place filter name:"}, category: catGeneral,
			description: "Matches events that occurred at places that match the specified place filter name"},
			func(b filter.Base) filter.Rule { return &matchesPlaceFilter{Base: b} }),
	}
}

type hasEventType struct{ filter.Base }

func (r *hasEventType) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	ev, ok := obj.(*genealogy.Event)
	want := r.Value(0)
	return ok && want != "" && strings.EqualFold(ev.Type, want)
}

type hasEventData struct {
	filter.Base
	fields eventFields
}

func (r *hasEventData) Prepare(context.Context, *filter.Env) error {
	r.fields.prepare(&r.Base)
	return nil
}

func (r *hasEventData) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	ev, ok := obj.(*genealogy.Event)
	if !ok || allEmpty(&r.Base) {
		return false
	}
	return r.fields.match(ctx, db, &r.Base, ev)
}

// hasDayOfWeek takes 0 for Monday through 6 for Sunday.
type hasDayOfWeek struct{ filter.Base }

func (r *hasDayOfWeek) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	ev, ok := obj.(*genealogy.Event)
	if !ok {
		return false
	}
	want, err := strconv.Atoi(r.Value(0))
	if err != nil {
		return false
	}
	day, ok := ev.Date.Weekday()
	return ok && day == want
}

// matchesPersonFilter collects the events of matched people, and optionally
// of their families.
type matchesPersonFilter struct {
	filter.Base
	events map[string]bool
}

func (r *matchesPersonFilter) Prepare(ctx context.Context, env *filter.Env) error {
	r.events = make(map[string]bool)
	people, err := matchSet(ctx, env, genealogy.NSPerson, r.Value(0))
	if err != nil {
		return err
	}
	withFamilies := isTrue(r.Value(1))
	for _, h := range people {
		p, err := genealogy.GetPerson(ctx, env.DB, h)
		if err != nil {
			continue
		}
		for _, ref := range p.EventRefList {
			r.events[ref.Handle] = true
		}
		if !withFamilies {
			continue
		}
		for _, fh := range p.FamilyList {
			fam, err := genealogy.GetFamily(ctx, env.DB, fh)
			if err != nil {
				continue
			}
			for _, ref := range fam.EventRefList {
				r.events[ref.Handle] = true
			}
		}
	}
	return nil
}

func (r *matchesPersonFilter) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.events[obj.Base().Handle]
}

func (r *matchesPersonFilter) Reset() { r.events = nil }

type matchesPlaceFilter struct {
	filter.Base
	nested
}

func (r *matchesPlaceFilter) Prepare(ctx context.Context, env *filter.Env) error {
	return r.prepare(ctx, env, genealogy.NSPlace, r.Value(0))
}

func (r *matchesPlaceFilter) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	ev, ok := obj.(*genealogy.Event)
	if !ok || ev.Place == "" || r.sub == nil {
		return false
	}
	place, err := genealogy.GetPlace(ctx, db, ev.Place)
	return err == nil && r.check(ctx, db, place)
}

func (r *matchesPlaceFilter) Reset() { r.reset() }
