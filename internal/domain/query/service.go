// Package query exposes the filter engine to clients: the rule catalogue,
// the named filter lists and evaluation.
package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/filterlist"
	"github.com/rpggio/lineage/internal/genealogy"
)

// Service handles rule catalogue, filter list and evaluation requests.
type Service struct {
	db       genealogy.Database
	registry *filter.Registry
	filters  *filterlist.Context
	logger   *slog.Logger

	// Named filters are shared instances and hold per-evaluation state, so
	// evaluations and list edits run one at a time.
	mu sync.Mutex
}

// NewService creates a query service over a loaded filter context.
func NewService(db genealogy.Database, registry *filter.Registry, filters *filterlist.Context, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{db: db, registry: registry, filters: filters, logger: logger}
}

func parseNamespace(s string) (genealogy.Namespace, error) {
	ns, err := genealogy.ParseNamespace(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return ns, nil
}

// ListRules returns the rule classes of a namespace.
func (s *Service) ListRules(nsName string) ([]RuleSummary, error) {
	ns, err := parseNamespace(nsName)
	if err != nil {
		return nil, err
	}

	infos := s.registry.List(ns)
	out := make([]RuleSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, RuleSummary{
			Name:        info.Name,
			Namespace:   string(info.Namespace),
			Category:    info.Category,
			Description: info.Description,
			Labels:      append([]string{}, info.Labels...),
			AllowRegex:  info.AllowRegex,
		})
	}
	return out, nil
}

// ListFilters returns the system filters of a namespace followed by the
// custom ones.
func (s *Service) ListFilters(nsName string) ([]FilterSummary, error) {
	ns, err := parseNamespace(nsName)
	if err != nil {
		return nil, err
	}

	out := make([]FilterSummary, 0)
	for _, list := range []*filterlist.FilterList{s.filters.System, s.filters.Custom} {
		for _, f := range list.Filters(ns) {
			out = append(out, FilterSummary{
				Name:      f.Name,
				Namespace: string(ns),
				Scope:     list.Scope(),
				Comment:   f.Comment,
				Function:  string(f.LogicalOp()),
				Invert:    f.Invert(),
				RuleCount: len(f.Rules()),
			})
		}
	}
	return out, nil
}

// GetFilter returns the definition of a named filter as it resolves.
func (s *Service) GetFilter(nsName, name string) (*FilterDetail, error) {
	ns, err := parseNamespace(nsName)
	if err != nil {
		return nil, err
	}

	for _, list := range []*filterlist.FilterList{s.filters.System, s.filters.Custom} {
		if f, ok := list.Lookup(ns, name); ok {
			return &FilterDetail{
				Namespace:  string(ns),
				Scope:      list.Scope(),
				Definition: filterlist.Encode(f),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q", ErrFilterNotFound, ns, name)
}

// Apply evaluates a named or ad-hoc filter. Cancelling ctx aborts the run
// with filter.ErrAborted and no partial result.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	ns, err := parseNamespace(req.Namespace)
	if err != nil {
		return nil, err
	}
	if (req.Definition == nil) == (strings.TrimSpace(req.Filter) == "") {
		return nil, fmt.Errorf("%w: exactly one of filter and definition is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.resolve(ns, req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	total := len(req.Handles)
	progress := func(done, n int) {
		total = n
		if req.Progress != nil {
			req.Progress(done, n)
		}
	}

	logger := s.logger.With("run_id", runID)
	start := time.Now()

	db, err := s.view(ctx, req.Visibility, logger)
	if err != nil {
		return nil, err
	}
	env := filter.NewEnv(db, s.filters, logger)

	var matches []string
	if len(req.Params) > 0 {
		pf := filter.NewParamFilter(f)
		pf.SetParameters(req.Params...)
		matches, err = pf.Apply(ctx, env, req.Handles, filter.WithProgress(progress))
	} else {
		matches, err = f.Apply(ctx, env, req.Handles, filter.WithProgress(progress))
	}
	switch {
	case errors.Is(err, filter.ErrParamCount):
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, filter.ErrFilterNotFound):
		return nil, fmt.Errorf("%w: %w", ErrFilterNotFound, err)
	case err != nil:
		s.logger.Warn("filter evaluation failed", "run_id", runID, "filter", f.Label(), "error", err)
		return nil, fmt.Errorf("applying filter: %w", err)
	}

	result := &ApplyResult{
		RunID:      runID,
		Namespace:  string(ns),
		Filter:     f.Name,
		Matches:    matches,
		Candidates: total,
		Elapsed:    time.Since(start),
	}
	s.logger.Info("filter applied",
		"run_id", runID,
		"filter", f.Label(),
		"candidates", result.Candidates,
		"matches", len(matches),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// view returns the database an evaluation sees: the store itself, or a proxy
// hiding what the visibility filters reject.
func (s *Service) view(ctx context.Context, v *Visibility, logger *slog.Logger) (genealogy.Database, error) {
	if v.empty() {
		return s.db, nil
	}

	lookup := func(ns genealogy.Namespace, name string) (*filter.GenericFilter, error) {
		if name == "" {
			return nil, nil
		}
		f, ok := s.filters.Lookup(ns, name)
		if !ok {
			return nil, fmt.Errorf("%w: visibility %s %q", ErrFilterNotFound, ns, name)
		}
		return f, nil
	}
	people, err := lookup(genealogy.NSPerson, v.People)
	if err != nil {
		return nil, err
	}
	events, err := lookup(genealogy.NSEvent, v.Events)
	if err != nil {
		return nil, err
	}
	notes, err := lookup(genealogy.NSNote, v.Notes)
	if err != nil {
		return nil, err
	}

	proxy, err := filter.NewProxy(ctx, filter.NewEnv(s.db, s.filters, logger), people, events, notes)
	if err != nil {
		return nil, fmt.Errorf("building visible view: %w", err)
	}
	return proxy, nil
}

// resolve returns the filter to evaluate. Named filters are cloned before
// parameters are bound so the stored definition keeps its values.
func (s *Service) resolve(ns genealogy.Namespace, req ApplyRequest) (*filter.GenericFilter, error) {
	if req.Definition != nil {
		f, err := filterlist.Decode(s.registry, ns, *req.Definition)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return f, nil
	}

	f, ok := s.filters.Lookup(ns, req.Filter)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrFilterNotFound, ns, req.Filter)
	}
	if len(req.Params) == 0 {
		return f, nil
	}
	clone, err := filterlist.Clone(s.registry, f)
	if err != nil {
		return nil, fmt.Errorf("cloning filter: %w", err)
	}
	return clone, nil
}

// Define creates or replaces a custom filter and saves the custom list.
func (s *Service) Define(ctx context.Context, req DefineRequest) (*FilterDetail, error) {
	ns, err := parseNamespace(req.Namespace)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Definition.Name) == "" {
		return nil, fmt.Errorf("%w: filter name is required", ErrInvalidInput)
	}
	if req.Definition.Function != "" {
		if _, ok := filter.ParseLogicalOp(req.Definition.Function); !ok {
			return nil, fmt.Errorf("%w: unknown function %q", ErrInvalidInput, req.Definition.Function)
		}
	}

	f, err := filterlist.Decode(s.registry, ns, req.Definition)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	for i, r := range f.Rules() {
		if err := filter.CheckPatterns(r); err != nil {
			return nil, fmt.Errorf("%w: rule %d: %w", ErrInvalidInput, i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.filters.System.Lookup(ns, f.Name); ok {
		return nil, fmt.Errorf("%w: %s %q", ErrSystemFilter, ns, f.Name)
	}
	err = s.filters.Custom.Edit(func(l *filterlist.FilterList) error { return l.Replace(f) })
	if err != nil {
		return nil, fmt.Errorf("storing filter: %w", err)
	}

	s.logger.Info("custom filter defined", "namespace", ns, "filter", f.Name, "rules", len(f.Rules()))
	return &FilterDetail{
		Namespace:  string(ns),
		Scope:      filterlist.ScopeCustom,
		Definition: filterlist.Encode(f),
	}, nil
}

// Delete removes a custom filter and saves the custom list.
func (s *Service) Delete(ctx context.Context, nsName, name string) error {
	ns, err := parseNamespace(nsName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.filters.System.Lookup(ns, name); ok {
		return fmt.Errorf("%w: %s %q", ErrSystemFilter, ns, name)
	}
	err = s.filters.Custom.Edit(func(l *filterlist.FilterList) error { return l.Remove(ns, name) })
	switch {
	case errors.Is(err, filter.ErrFilterNotFound):
		return fmt.Errorf("%w: %s %q", ErrFilterNotFound, ns, name)
	case err != nil:
		return fmt.Errorf("removing filter: %w", err)
	}

	s.logger.Info("custom filter deleted", "namespace", ns, "filter", name)
	return nil
}

// Reload re-reads both filter lists from disk and returns the load
// diagnostics.
func (s *Service) Reload(ctx context.Context) ([]filterlist.Diagnostic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.filters.Load(); err != nil {
		return nil, fmt.Errorf("reloading filters: %w", err)
	}
	diags := s.filters.Diagnostics()
	s.logger.Info("filters reloaded", "diagnostics", len(diags))
	return diags, nil
}

// Diagnostics returns the problems found by the last load.
func (s *Service) Diagnostics() []filterlist.Diagnostic {
	return s.filters.Diagnostics()
}
