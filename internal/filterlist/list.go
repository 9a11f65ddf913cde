// Package filterlist loads, stores and resolves named filters. A Context
// joins the read-only system list with the user-editable custom list.
package filterlist

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
	"gopkg.in/yaml.v3"
)

// Scope tells system and custom lists apart.
type Scope string

const (
	ScopeSystem Scope = "system"
	ScopeCustom Scope = "custom"
)

// Diagnostic describes a filter entry that was skipped or adjusted on load.
type Diagnostic struct {
	Namespace string `json:"namespace"`
	Filter    string `json:"filter"`
	Message   string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %q: %s", d.Namespace, d.Filter, d.Message)
}

// FilterList is a persisted set of named filters per namespace.
type FilterList struct {
	path     string
	scope    Scope
	registry *filter.Registry
	logger   *slog.Logger

	mu          sync.RWMutex
	filters     map[genealogy.Namespace][]*filter.GenericFilter
	diagnostics []Diagnostic
}

// New creates an empty list backed by the file at path.
func New(path string, scope Scope, reg *filter.Registry, logger *slog.Logger) *FilterList {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FilterList{
		path:     path,
		scope:    scope,
		registry: reg,
		logger:   logger,
		filters:  make(map[genealogy.Namespace][]*filter.GenericFilter),
	}
}

func (l *FilterList) Scope() Scope { return l.scope }

func (l *FilterList) Path() string { return l.path }

// Load replaces the in-memory filters with the file's content. A missing
// file loads as empty. Malformed entries are skipped and reported through
// Diagnostics; only an unreadable or unparseable file fails.
func (l *FilterList) Load() error {
	filters := make(map[genealogy.Namespace][]*filter.GenericFilter)
	var diags []Diagnostic

	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Debug("filter file not found, starting empty", "scope", l.scope, "path", l.path)
	case err != nil:
		return fmt.Errorf("failed to read %s filters: %w", l.scope, err)
	default:
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s filters: %w", l.scope, err)
		}
		filters, diags = l.decode(doc)
	}

	for _, d := range diags {
		l.logger.Warn("filter entry skipped or adjusted", "scope", l.scope, "namespace", d.Namespace, "filter", d.Filter, "reason", d.Message)
	}

	l.mu.Lock()
	l.filters = filters
	l.diagnostics = diags
	l.mu.Unlock()
	return nil
}

func (l *FilterList) decode(doc document) (map[genealogy.Namespace][]*filter.GenericFilter, []Diagnostic) {
	filters := make(map[genealogy.Namespace][]*filter.GenericFilter)
	var diags []Diagnostic
	report := func(ns, name, format string, args ...any) {
		diags = append(diags, Diagnostic{Namespace: ns, Filter: name, Message: fmt.Sprintf(format, args...)})
	}

	for _, section := range doc.Objects {
		ns, err := genealogy.ParseNamespace(section.Type)
		if err != nil {
			for _, def := range section.Filters {
				report(section.Type, def.Name, "unknown record type")
			}
			continue
		}

		seen := make(map[string]bool)
		for _, def := range section.Filters {
			if def.Name == "" {
				report(string(ns), "", "missing name")
				continue
			}
			if seen[def.Name] {
				report(string(ns), def.Name, "duplicate name")
				continue
			}
			f, err := Decode(l.registry, ns, def)
			if err != nil {
				report(string(ns), def.Name, "%v", err)
				continue
			}
			if _, ok := filter.ParseLogicalOp(def.Function); !ok && def.Function != "" {
				report(string(ns), def.Name, "unknown function %q, using and", def.Function)
			}
			for _, r := range f.Rules() {
				if err := filter.CheckPatterns(r); err != nil {
					report(string(ns), def.Name, "invalid regular expression, matching literally: %v", err)
				}
			}
			seen[def.Name] = true
			filters[ns] = append(filters[ns], f)
		}
	}
	return filters, diags
}

// Save writes every filter to the backing file, replacing it atomically.
func (l *FilterList) Save() error {
	if l.scope == ScopeSystem {
		return ErrReadOnly
	}

	l.mu.RLock()
	doc := document{Version: formatVersion}
	for _, ns := range genealogy.Namespaces {
		list := l.filters[ns]
		if len(list) == 0 {
			continue
		}
		section := objectSection{Type: string(ns)}
		for _, f := range list {
			section.Filters = append(section.Filters, Encode(f))
		}
		doc.Objects = append(doc.Objects, section)
	}
	l.mu.RUnlock()

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s filters: %w", l.scope, err)
	}
	if err := writeFileAtomic(l.path, data); err != nil {
		return fmt.Errorf("failed to save %s filters: %w", l.scope, err)
	}
	l.logger.Info("filters saved", "scope", l.scope, "path", l.path)
	return nil
}

// Edit runs change against the list and saves it. If change or the save
// fails, the in-memory filters are restored to what they were before.
func (l *FilterList) Edit(change func(*FilterList) error) error {
	l.mu.RLock()
	before := make(map[genealogy.Namespace][]*filter.GenericFilter, len(l.filters))
	for ns, list := range l.filters {
		before[ns] = append([]*filter.GenericFilter(nil), list...)
	}
	l.mu.RUnlock()

	err := change(l)
	if err == nil {
		err = l.Save()
	}
	if err != nil {
		l.mu.Lock()
		l.filters = before
		l.mu.Unlock()
		return err
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Filters returns the namespace's filters in definition order.
func (l *FilterList) Filters(ns genealogy.Namespace) []*filter.GenericFilter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*filter.GenericFilter(nil), l.filters[ns]...)
}

// Lookup implements filter.Resolver.
func (l *FilterList) Lookup(ns genealogy.Namespace, name string) (*filter.GenericFilter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, f := range l.filters[ns] {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Add appends f to its namespace.
func (l *FilterList) Add(f *filter.GenericFilter) error {
	return l.put(f, false)
}

// Replace stores f, replacing a filter of the same name in place.
func (l *FilterList) Replace(f *filter.GenericFilter) error {
	return l.put(f, true)
}

func (l *FilterList) put(f *filter.GenericFilter, replace bool) error {
	if l.scope == ScopeSystem {
		return ErrReadOnly
	}
	if f.Name == "" {
		return ErrMissingName
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	ns := f.Namespace()
	for i, existing := range l.filters[ns] {
		if existing.Name != f.Name {
			continue
		}
		if !replace {
			return fmt.Errorf("%w: %s %q", ErrDuplicateName, ns, f.Name)
		}
		l.filters[ns][i] = f
		return nil
	}
	l.filters[ns] = append(l.filters[ns], f)
	return nil
}

// Remove deletes the named filter.
func (l *FilterList) Remove(ns genealogy.Namespace, name string) error {
	if l.scope == ScopeSystem {
		return ErrReadOnly
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.filters[ns]
	for i, f := range list {
		if f.Name == name {
			l.filters[ns] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q", filter.ErrFilterNotFound, ns, name)
}

// Diagnostics returns the problems found by the last Load.
func (l *FilterList) Diagnostics() []Diagnostic {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Diagnostic(nil), l.diagnostics...)
}
