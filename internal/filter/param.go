package filter

import (
	"context"
	"fmt"
)

// ParamFilter is a filter whose rule values are supplied at evaluation time.
// Every rule receives the same parameter list before preparation.
type ParamFilter struct {
	*GenericFilter
	params []string
}

// NewParamFilter wraps f. The wrapped filter's rules are rebound on Apply.
func NewParamFilter(f *GenericFilter) *ParamFilter {
	return &ParamFilter{GenericFilter: f}
}

// SetParameters records the values to bind.
func (p *ParamFilter) SetParameters(params ...string) {
	p.params = append([]string(nil), params...)
}

func (p *ParamFilter) Parameters() []string { return append([]string(nil), p.params...) }

// Apply binds the parameters into every rule, then evaluates as
// GenericFilter.Apply does.
func (p *ParamFilter) Apply(ctx context.Context, env *Env, handles []string, opts ...ApplyOption) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.rules {
		if err := r.SetValues(p.params); err != nil {
			return nil, fmt.Errorf("bind parameters in %s: %w", p.Label(), err)
		}
	}

	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}
	return p.apply(ctx, env, handles, o)
}
