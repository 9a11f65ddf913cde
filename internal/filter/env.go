package filter

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rpggio/lineage/internal/genealogy"
)

// Resolver finds named filters for MatchesFilter-style rules.
type Resolver interface {
	Lookup(ns genealogy.Namespace, name string) (*GenericFilter, bool)
}

// Env is the evaluation environment handed to rules at prepare time. It
// tracks the chain of filters being prepared so nested references can be
// checked for cycles; one Env serves one evaluation at a time.
//
// Referenced filters are cloned once per Env, so concurrent evaluations that
// name the same filter never share rule state. Filters holding rules not
// built by a Registry cannot be cloned and are shared; callers must not
// evaluate those concurrently.
type Env struct {
	DB      genealogy.Database
	Filters Resolver
	Logger  *slog.Logger

	active []*GenericFilter
	owned  map[string]*GenericFilter
}

// NewEnv creates an evaluation environment. filters and logger may be nil.
func NewEnv(db genealogy.Database, filters Resolver, logger *slog.Logger) *Env {
	return &Env{DB: db, Filters: filters, Logger: logger}
}

// Lookup resolves a named filter of the namespace.
func (e *Env) Lookup(ns genealogy.Namespace, name string) (*GenericFilter, error) {
	if e.Filters == nil || name == "" {
		return nil, fmt.Errorf("%w: %s %q", ErrFilterNotFound, ns, name)
	}
	key := string(ns) + ":" + name
	if f, ok := e.owned[key]; ok {
		return f, nil
	}
	f, ok := e.Filters.Lookup(ns, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrFilterNotFound, ns, name)
	}

	clone, err := f.Clone()
	if err != nil {
		e.Log().Debug("referenced filter is shared", "filter", f.Label(), "reason", err)
		return f, nil
	}
	if e.owned == nil {
		e.owned = make(map[string]*GenericFilter)
	}
	e.owned[key] = clone
	return clone, nil
}

// Log returns the environment logger, or a discarding one.
func (e *Env) Log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

func (e *Env) enter(f *GenericFilter) error {
	for i, a := range e.active {
		if a.root() == f.root() {
			loop := append(append([]*GenericFilter(nil), e.active[i:]...), f)
			return fmt.Errorf("%w: %s", ErrCyclicReference, chain(loop))
		}
	}
	e.active = append(e.active, f)
	return nil
}

func (e *Env) leave(f *GenericFilter) {
	for i := len(e.active) - 1; i >= 0; i-- {
		if e.active[i] == f {
			e.active = append(e.active[:i], e.active[i+1:]...)
			return
		}
	}
}

func chain(filters []*GenericFilter) string {
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Label()
	}
	return strings.Join(names, " -> ")
}
