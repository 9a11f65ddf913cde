package rules

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

var (
	allNamespaces = genealogy.Namespaces

	// namespaces whose records hold note references
	annotatedNamespaces = []genealogy.Namespace{
		genealogy.NSPerson, genealogy.NSFamily, genealogy.NSEvent, genealogy.NSPlace,
		genealogy.NSSource, genealogy.NSCitation, genealogy.NSRepository, genealogy.NSMedia,
	}
	galleryNamespaces = []genealogy.Namespace{
		genealogy.NSPerson, genealogy.NSFamily, genealogy.NSEvent, genealogy.NSPlace,
		genealogy.NSSource, genealogy.NSCitation,
	}
	citedNamespaces = []genealogy.Namespace{
		genealogy.NSPerson, genealogy.NSFamily, genealogy.NSEvent, genealogy.NSPlace, genealogy.NSMedia,
	}
	attributedNamespaces = []genealogy.Namespace{
		genealogy.NSPerson, genealogy.NSFamily, genealogy.NSEvent, genealogy.NSMedia,
	}
)

var everyoneNames = map[genealogy.Namespace]string{
	genealogy.NSPerson:     "Everyone",
	genealogy.NSFamily:     "AllFamilies",
	genealogy.NSEvent:      "AllEvents",
	genealogy.NSPlace:      "AllPlaces",
	genealogy.NSSource:     "AllSources",
	genealogy.NSCitation:   "AllCitations",
	genealogy.NSRepository: "AllRepos",
	genealogy.NSNote:       "AllNotes",
	genealogy.NSMedia:      "AllMedia",
}

var privateNames = map[genealogy.Namespace]string{
	genealogy.NSPerson:     "PeoplePrivate",
	genealogy.NSFamily:     "FamilyPrivate",
	genealogy.NSEvent:      "EventPrivate",
	genealogy.NSPlace:      "PlacePrivate",
	genealogy.NSSource:     "SourcePrivate",
	genealogy.NSCitation:   "CitationPrivate",
	genealogy.NSRepository: "RepositoryPrivate",
	genealogy.NSNote:       "NotePrivate",
	genealogy.NSMedia:      "MediaPrivate",
}

var countLabels = []string{"Number of instances:", "Number must be:"}

func genericRules() []filter.RuleInfo {
	var infos []filter.RuleInfo
	for _, ns := range allNamespaces {
		infos = append(infos,
			define(ruleDef{ns: ns, name: everyoneNames[ns], category: catGeneral,
				description: "Matches every " + strings.ToLower(string(ns)) + " in the database"},
				func(b filter.Base) filter.Rule { return &everyone{Base: b} }),
			define(ruleDef{ns: ns, name: privateNames[ns], category: catGeneral,
				description: "Matches records marked private"},
				func(b filter.Base) filter.Rule { return &isPrivate{Base: b} }),
		)
	}

	infos = append(infos, perNamespace(allNamespaces, ruleDef{
		name: "HasIdOf", labels: []string{"ID:"}, category: catGeneral,
		description: "Matches the record with a specified ID",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasIDOf{Base: b} })...)

	infos = append(infos, perNamespace(allNamespaces, ruleDef{
		name: "RegExpIdOf", labels: []string{"Text:"}, category: catGeneral, allowRegex: true,
		description: "Matches records whose ID contains the text",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &regExpIDOf{Base: b} })...)

	infos = append(infos, perNamespace(allNamespaces, ruleDef{
		name: "ChangedSince", labels: []string{"Changed after:", "but before:"}, category: catGeneral,
		description: "Matches records changed after a date-time (yyyy-mm-dd hh:mm:ss) or in a range",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &changedSince{Base: b} })...)

	infos = append(infos, perNamespace(allNamespaces, ruleDef{
		name: "HasTag", labels: []string{"Tag:"}, category: catGeneral,
		description: "Matches records with the particular tag",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasTag{Base: b} })...)

	infos = append(infos, perNamespace(allNamespaces, ruleDef{
		name: "IsBookmarked", category: catGeneral,
		description: "Matches bookmarked records",
	}, func(ns genealogy.Namespace, b filter.Base) filter.Rule { return &isBookmarked{Base: b, ns: ns} })...)

	infos = append(infos, perNamespace(allNamespaces, ruleDef{
		name: "MatchesFilter", labels: []string{"Filter name:"}, category: catGeneral,
		description: "Matches records matched by the specified filter name",
	}, func(ns genealogy.Namespace, b filter.Base) filter.Rule { return &matchesFilter{Base: b, ns: ns} })...)

	infos = append(infos, perNamespace(allNamespaces, ruleDef{
		name: "HasReferenceCountOf", labels: []string{"Reference count must be:", "Reference count:"}, category: catGeneral,
		description: "Matches records with a certain reference count",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasReferenceCountOf{Base: b} })...)

	infos = append(infos, perNamespace(allNamespaces, ruleDef{
		name: "MatchesExpression", labels: []string{"Expression:"}, category: catGeneral,
		description: "Matches records for which a boolean expression over their fields is true",
	}, func(ns genealogy.Namespace, b filter.Base) filter.Rule { return &matchesExpression{Base: b, ns: ns} })...)

	infos = append(infos, perNamespace(annotatedNamespaces, ruleDef{
		name: "HasNote", labels: countLabels, category: catGeneral,
		description: "Matches records having a certain number of notes",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasNoteCount{Base: b} })...)

	infos = append(infos, perNamespace(annotatedNamespaces, ruleDef{
		name: "HasNoteRegexp", labels: []string{"Text:"}, category: catGeneral, allowRegex: true,
		description: "Matches records having a note containing the text",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasNoteText{Base: b} })...)

	infos = append(infos, perNamespace(galleryNamespaces, ruleDef{
		name: "HasGallery", labels: countLabels, category: catGeneral,
		description: "Matches records with a certain number of items in the gallery",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasGallery{Base: b} })...)

	infos = append(infos, perNamespace(citedNamespaces, ruleDef{
		name: "HasSourceCount", labels: countLabels, category: catCitation,
		description: "Matches records with a certain number of source citations",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasSourceCount{Base: b} })...)

	infos = append(infos, perNamespace(citedNamespaces, ruleDef{
		name: "HasSourceOf", labels: []string{"Source ID:"}, category: catCitation,
		description: "Matches records who have a particular source; an empty ID matches records without citations",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasSourceOf{Base: b} })...)

	infos = append(infos, perNamespace(append(append([]genealogy.Namespace(nil), citedNamespaces...), genealogy.NSCitation), ruleDef{
		name: "MatchesSourceConfidence", labels: []string{"Confidence level:"}, category: catCitation,
		description: "Matches records with at least one citation of the given confidence level or higher",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &matchesSourceConfidence{Base: b} })...)

	infos = append(infos, perNamespace(attributedNamespaces, ruleDef{
		name: "HasAttribute", labels: []string{"Attribute:", "Value:"}, category: catGeneral, allowRegex: true,
		description: "Matches records with the attribute of a particular value",
	}, func(_ genealogy.Namespace, b filter.Base) filter.Rule { return &hasAttribute{Base: b} })...)

	return infos
}

type everyone struct{ filter.Base }

func (r *everyone) Apply(context.Context, genealogy.Database, genealogy.Object) bool { return true }

type isPrivate struct{ filter.Base }

func (r *isPrivate) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return obj.Base().Private
}

type hasIDOf struct{ filter.Base }

func (r *hasIDOf) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	id := r.Value(0)
	return id != "" && obj.Base().ID == id
}

type regExpIDOf struct{ filter.Base }

func (r *regExpIDOf) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.Value(0) != "" && r.MatchSubstring(0, obj.Base().ID)
}

var changeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseChangeTime(s string) (int64, bool) {
	for _, layout := range changeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

// changedSince keeps records whose change time is at or after the first
// value and, when given, at or before the second.
type changedSince struct {
	filter.Base
	since, before       int64
	hasSince, hasBefore bool
	resolved            bool
}

func (r *changedSince) Prepare(context.Context, *filter.Env) error {
	r.resolved = false
	r.since, r.hasSince = 0, false
	r.before, r.hasBefore = 0, false

	if v := r.Value(0); v != "" {
		if r.since, r.hasSince = parseChangeTime(v); !r.hasSince {
			return nil
		}
	}
	if v := r.Value(1); v != "" {
		if r.before, r.hasBefore = parseChangeTime(v); !r.hasBefore {
			return nil
		}
	}
	r.resolved = r.hasSince || r.hasBefore
	return nil
}

func (r *changedSince) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	if !r.resolved {
		return false
	}
	change := obj.Base().Change
	if r.hasSince && change < r.since {
		return false
	}
	if r.hasBefore && change > r.before {
		return false
	}
	return true
}

func (r *changedSince) Reset() { r.resolved = false }

type hasTag struct {
	filter.Base
	tagHandle string
}

func (r *hasTag) Prepare(ctx context.Context, env *filter.Env) error {
	r.tagHandle = ""
	name := r.Value(0)
	if name == "" {
		return nil
	}
	tag, err := env.DB.TagFromName(ctx, name)
	if err != nil {
		if lookupMiss(err) {
			return nil
		}
		return err
	}
	r.tagHandle = tag.Handle
	return nil
}

func (r *hasTag) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.tagHandle != "" && obj.Base().HasTag(r.tagHandle)
}

func (r *hasTag) Reset() { r.tagHandle = "" }

type isBookmarked struct {
	filter.Base
	ns    genealogy.Namespace
	marks map[string]bool
}

func (r *isBookmarked) Prepare(ctx context.Context, env *filter.Env) error {
	handles, err := env.DB.Bookmarks(ctx, r.ns)
	if err != nil {
		return err
	}
	r.marks = toSet(handles)
	return nil
}

func (r *isBookmarked) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	return r.marks[obj.Base().Handle]
}

func (r *isBookmarked) Reset() { r.marks = nil }

type matchesFilter struct {
	filter.Base
	ns genealogy.Namespace
	nested
}

func (r *matchesFilter) Prepare(ctx context.Context, env *filter.Env) error {
	return r.prepare(ctx, env, r.ns, r.Value(0))
}

func (r *matchesFilter) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	return r.check(ctx, db, obj)
}

func (r *matchesFilter) Reset() { r.reset() }

type hasReferenceCountOf struct {
	filter.Base
	count counter
}

func (r *hasReferenceCountOf) Prepare(context.Context, *filter.Env) error {
	r.count = parseCounter(r.Value(1), r.Value(0))
	return nil
}

func (r *hasReferenceCountOf) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	if !r.count.valid {
		return false
	}
	n, err := db.ReferenceCount(ctx, obj.Base().Handle)
	if err != nil {
		return false
	}
	return r.count.test(n)
}

// matchesExpression evaluates a boolean expression with the record's
// persisted fields as variables, for example
// `gender == 1 && primary_name.surname startsWith "Sm"`.
type matchesExpression struct {
	filter.Base
	ns      genealogy.Namespace
	program *vm.Program
}

func (r *matchesExpression) Prepare(_ context.Context, env *filter.Env) error {
	r.program = nil
	src := r.Value(0)
	if src == "" {
		return nil
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		env.Log().Warn("expression does not compile", "namespace", r.ns, "expression", src, "error", err)
		return nil
	}
	r.program = program
	return nil
}

func (r *matchesExpression) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	if r.program == nil {
		return false
	}
	env, err := recordEnv(obj)
	if err != nil {
		return false
	}
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false
	}
	result, ok := out.(bool)
	return ok && result
}

func (r *matchesExpression) Reset() { r.program = nil }

func recordEnv(obj genealogy.Object) (map[string]any, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	env := map[string]any{}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	env["namespace"] = string(obj.Namespace())
	return env, nil
}

type hasNoteCount struct {
	filter.Base
	count counter
}

func (r *hasNoteCount) Prepare(context.Context, *filter.Env) error {
	r.count = parseCounter(r.Value(0), r.Value(1))
	return nil
}

func (r *hasNoteCount) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	holder, ok := obj.(genealogy.NoteHolder)
	return ok && r.count.test(len(holder.Notes()))
}

type hasNoteText struct{ filter.Base }

func (r *hasNoteText) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	holder, ok := obj.(genealogy.NoteHolder)
	if !ok || r.Value(0) == "" {
		return false
	}
	for _, h := range holder.Notes() {
		note, err := genealogy.GetNote(ctx, db, h)
		if err == nil && r.MatchSubstring(0, note.Text) {
			return true
		}
	}
	return false
}

type hasGallery struct {
	filter.Base
	count counter
}

func (r *hasGallery) Prepare(context.Context, *filter.Env) error {
	r.count = parseCounter(r.Value(0), r.Value(1))
	return nil
}

func (r *hasGallery) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	holder, ok := obj.(genealogy.MediaHolder)
	return ok && r.count.test(len(holder.Media()))
}

type hasSourceCount struct {
	filter.Base
	count counter
}

func (r *hasSourceCount) Prepare(context.Context, *filter.Env) error {
	r.count = parseCounter(r.Value(0), r.Value(1))
	return nil
}

func (r *hasSourceCount) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	holder, ok := obj.(genealogy.CitationHolder)
	return ok && r.count.test(len(holder.Citations()))
}

// hasSourceOf matches records citing a source; with an empty ID it matches
// records that cite nothing.
type hasSourceOf struct {
	filter.Base
	source      string
	noCitations bool
}

func (r *hasSourceOf) Prepare(ctx context.Context, env *filter.Env) error {
	r.source, r.noCitations = "", false
	id := r.Value(0)
	if id == "" {
		r.noCitations = true
		return nil
	}
	src, err := env.DB.GetByID(ctx, genealogy.NSSource, id)
	if err != nil {
		if lookupMiss(err) {
			return nil
		}
		return err
	}
	r.source = src.Base().Handle
	return nil
}

func (r *hasSourceOf) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	holder, ok := obj.(genealogy.CitationHolder)
	if !ok {
		return false
	}
	if r.noCitations {
		return len(holder.Citations()) == 0
	}
	if r.source == "" {
		return false
	}
	for _, h := range holder.Citations() {
		c, err := genealogy.GetCitation(ctx, db, h)
		if err == nil && c.SourceHandle == r.source {
			return true
		}
	}
	return false
}

func (r *hasSourceOf) Reset() { r.source, r.noCitations = "", false }

// matchesSourceConfidence caches citation confidence per handle for the
// duration of one evaluation.
type matchesSourceConfidence struct {
	filter.Base
	level      int
	valid      bool
	confidence map[string]int
}

func (r *matchesSourceConfidence) Prepare(context.Context, *filter.Env) error {
	level, err := strconv.Atoi(r.Value(0))
	r.level, r.valid = level, err == nil
	r.confidence = make(map[string]int)
	return nil
}

func (r *matchesSourceConfidence) Apply(ctx context.Context, db genealogy.Database, obj genealogy.Object) bool {
	if !r.valid {
		return false
	}
	if c, ok := obj.(*genealogy.Citation); ok {
		return c.Confidence >= r.level
	}
	holder, ok := obj.(genealogy.CitationHolder)
	if !ok {
		return false
	}
	for _, h := range holder.Citations() {
		conf, cached := r.confidence[h]
		if !cached {
			c, err := genealogy.GetCitation(ctx, db, h)
			if err != nil {
				continue
			}
			conf = c.Confidence
			if r.confidence != nil {
				r.confidence[h] = conf
			}
		}
		if conf >= r.level {
			return true
		}
	}
	return false
}

func (r *matchesSourceConfidence) Reset() { r.confidence = nil }

// hasAttribute needs both an equal attribute type and a value containing
// the second parameter.
type hasAttribute struct{ filter.Base }

func (r *hasAttribute) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	holder, ok := obj.(genealogy.AttributeHolder)
	if !ok || r.Value(0) == "" {
		return false
	}
	return matchAttributes(&r.Base, holder.Attributes())
}

func matchAttributes(b *filter.Base, attrs []genealogy.Attribute) bool {
	for _, a := range attrs {
		if strings.EqualFold(a.Type, b.Value(0)) && b.MatchSubstring(1, a.Value) {
			return true
		}
	}
	return false
}
