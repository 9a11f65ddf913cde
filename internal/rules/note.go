package rules

import (
	"context"
	"strings"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

func noteRules() []filter.RuleInfo {
	n := genealogy.NSNote
	return []filter.RuleInfo{
		define(ruleDef{ns: n, name: "HasNote", labels: []string{"Text:", "Note type:"}, category: catGeneral, allowRegex: true,
			description: "Matches notes with particular parameters"},
			func(b filter.Base) filter.Rule { return &hasNoteData{Base: b} }),
		define(ruleDef{ns: n, name: "MatchesSubstringOf", labels: []string{"Text:"}, category: catGeneral, allowRegex: true,
			description: "Matches notes that contain text which matches a substring"},
			func(b filter.Base) filter.Rule { return &noteTextContains{Base: b} }),
		define(ruleDef{ns: n, name: "MatchesRegexpOf", labels: []string{"Regular expression:"}, category: catGeneral, forceRegex: true,
			description: "Matches notes that contain text which matches a regular expression"},
			func(b filter.Base) filter.Rule { return &noteTextContains{Base: b} }),
	}
}

type hasNoteData struct{ filter.Base }

func (r *hasNoteData) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	note, ok := obj.(*genealogy.Note)
	if !ok || allEmpty(&r.Base) {
		return false
	}
	if typ := r.Value(1); typ != "" && !strings.EqualFold(note.Type, typ) {
		return false
	}
	return r.MatchSubstring(0, note.Text)
}

type noteTextContains struct{ filter.Base }

func (r *noteTextContains) Apply(_ context.Context, _ genealogy.Database, obj genealogy.Object) bool {
	note, ok := obj.(*genealogy.Note)
	return ok && r.Value(0) != "" && r.MatchSubstring(0, note.Text)
}
