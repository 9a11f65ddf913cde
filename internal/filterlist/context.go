package filterlist

import (
	"fmt"
	"log/slog"

	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/genealogy"
)

// Context holds the system and custom lists. It resolves names system
// first, then custom.
type Context struct {
	System *FilterList
	Custom *FilterList
}

var _ filter.Resolver = (*Context)(nil)

// NewContext creates unloaded lists for the two files.
func NewContext(systemPath, customPath string, reg *filter.Registry, logger *slog.Logger) *Context {
	return &Context{
		System: New(systemPath, ScopeSystem, reg, logger),
		Custom: New(customPath, ScopeCustom, reg, logger),
	}
}

// Load loads both lists.
func (c *Context) Load() error {
	if err := c.ReloadSystem(); err != nil {
		return err
	}
	return c.ReloadCustom()
}

// ReloadSystem re-reads the system list.
func (c *Context) ReloadSystem() error {
	if err := c.System.Load(); err != nil {
		return fmt.Errorf("failed to load system filters: %w", err)
	}
	return nil
}

// ReloadCustom re-reads the custom list, discarding unsaved edits.
func (c *Context) ReloadCustom() error {
	if err := c.Custom.Load(); err != nil {
		return fmt.Errorf("failed to load custom filters: %w", err)
	}
	return nil
}

func (c *Context) Lookup(ns genealogy.Namespace, name string) (*filter.GenericFilter, bool) {
	if f, ok := c.System.Lookup(ns, name); ok {
		return f, true
	}
	return c.Custom.Lookup(ns, name)
}

// Filters returns the system filters of ns followed by the custom ones.
func (c *Context) Filters(ns genealogy.Namespace) []*filter.GenericFilter {
	return append(c.System.Filters(ns), c.Custom.Filters(ns)...)
}

// Diagnostics returns the load problems of both lists.
func (c *Context) Diagnostics() []Diagnostic {
	return append(c.System.Diagnostics(), c.Custom.Diagnostics()...)
}
