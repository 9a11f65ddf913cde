package query_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/filterlist"
	"github.com/rpggio/lineage/internal/rules"
	"github.com/rpggio/lineage/internal/testdb"
	"github.com/stretchr/testify/require"
)

const systemFilters = `
version: 1
objects:
  - type: Person
    filters:
      - name: males
        function: and
        rules:
          - class: IsMale
            values: []
      - name: by id
        comment: parametrized
        rules:
          - class: HasIdOf
            values: [""]
`

func newService(t *testing.T) (*query.Service, string) {
	t.Helper()
	dir := t.TempDir()
	systemPath := filepath.Join(dir, "system_filters.yaml")
	customPath := filepath.Join(dir, "custom_filters.yaml")
	require.NoError(t, os.WriteFile(systemPath, []byte(systemFilters), 0o644))

	reg := rules.NewRegistry()
	filters := filterlist.NewContext(systemPath, customPath, reg, nil)
	require.NoError(t, filters.Load())
	return query.NewService(testdb.Sample(t), reg, filters, nil), customPath
}

func TestQueryService_ListRules(t *testing.T) {
	svc, _ := newService(t)

	list, err := svc.ListRules("person")
	require.NoError(t, err)
	names := map[string]query.RuleSummary{}
	for _, r := range list {
		names[r.Name] = r
	}
	require.Contains(t, names, "IsMale")
	require.Equal(t, []string{"ID:"}, names["HasIdOf"].Labels)
	require.True(t, names["RegExpName"].AllowRegex)

	_, err = svc.ListRules("Spaceship")
	require.ErrorIs(t, err, query.ErrInvalidInput)
}

func TestQueryService_ListAndGetFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Define(ctx, query.DefineRequest{
		Namespace:  "Person",
		Definition: filterlist.Definition{Name: "mine", Rules: []filterlist.RuleDef{{Class: "IsFemale"}}},
	})
	require.NoError(t, err)

	list, err := svc.ListFilters("Person")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "males", list[0].Name)
	require.Equal(t, filterlist.ScopeSystem, list[0].Scope)
	require.Equal(t, "mine", list[2].Name)
	require.Equal(t, filterlist.ScopeCustom, list[2].Scope)

	detail, err := svc.GetFilter("Person", "by id")
	require.NoError(t, err)
	require.Equal(t, "parametrized", detail.Definition.Comment)
	require.Equal(t, []string{""}, detail.Definition.Rules[0].Values)

	_, err = svc.GetFilter("Person", "nobody")
	require.ErrorIs(t, err, query.ErrFilterNotFound)

	empty, err := svc.ListFilters("Note")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestQueryService_ApplyNamed(t *testing.T) {
	svc, _ := newService(t)

	var done, total int
	res, err := svc.Apply(context.Background(), query.ApplyRequest{
		Namespace: "Person",
		Filter:    "males",
		Progress:  func(d, n int) { done, total = d, n },
	})
	require.NoError(t, err)
	require.Equal(t, []string{"P1", "P3", "P6"}, res.Matches)
	require.Equal(t, 8, res.Candidates)
	require.Equal(t, 8, done)
	require.Equal(t, 8, total)
	require.NotEmpty(t, res.RunID)

	res, err = svc.Apply(context.Background(), query.ApplyRequest{
		Namespace: "Person",
		Filter:    "males",
		Handles:   []string{"P6", "P2", "P1"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"P6", "P1"}, res.Matches)
	require.Equal(t, 3, res.Candidates)
}

func TestQueryService_ApplyParams(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	res, err := svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Filter: "by id", Params: []string{"I0003"}})
	require.NoError(t, err)
	require.Equal(t, []string{"P3"}, res.Matches)

	detail, err := svc.GetFilter("Person", "by id")
	require.NoError(t, err)
	require.Equal(t, []string{""}, detail.Definition.Rules[0].Values, "stored filter keeps its values")

	_, err = svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Filter: "by id", Params: []string{"I0003", "extra"}})
	require.ErrorIs(t, err, query.ErrInvalidInput)
	require.ErrorIs(t, err, filter.ErrParamCount)
}

func TestQueryService_ApplyAdHoc(t *testing.T) {
	svc, _ := newService(t)

	res, err := svc.Apply(context.Background(), query.ApplyRequest{
		Namespace: "Person",
		Definition: &filterlist.Definition{
			Invert: true,
			Rules:  []filterlist.RuleDef{{Class: "IsFemale"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"P1", "P3", "P6", "P8"}, res.Matches)

	_, err = svc.Apply(context.Background(), query.ApplyRequest{
		Namespace:  "Person",
		Definition: &filterlist.Definition{Rules: []filterlist.RuleDef{{Class: "NoSuchRule"}}},
	})
	require.ErrorIs(t, err, query.ErrInvalidInput)
}

func TestQueryService_ApplyVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	everyone := &filterlist.Definition{Rules: []filterlist.RuleDef{{Class: "Everyone"}}}

	res, err := svc.Apply(ctx, query.ApplyRequest{
		Namespace:  "Person",
		Definition: everyone,
		Visibility: &query.Visibility{People: "males"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"P1", "P3", "P6"}, res.Matches)
	require.Equal(t, 3, res.Candidates)

	res, err = svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Definition: everyone, Visibility: &query.Visibility{}})
	require.NoError(t, err)
	require.Len(t, res.Matches, 8)

	_, err = svc.Apply(ctx, query.ApplyRequest{
		Namespace:  "Person",
		Definition: everyone,
		Visibility: &query.Visibility{People: "nobody"},
	})
	require.ErrorIs(t, err, query.ErrFilterNotFound)
}

func TestQueryService_ApplyValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Apply(ctx, query.ApplyRequest{Namespace: "Person"})
	require.ErrorIs(t, err, query.ErrInvalidInput)

	_, err = svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Filter: "males", Definition: &filterlist.Definition{}})
	require.ErrorIs(t, err, query.ErrInvalidInput)

	_, err = svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Filter: "nobody"})
	require.ErrorIs(t, err, query.ErrFilterNotFound)

	_, err = svc.Apply(ctx, query.ApplyRequest{Namespace: "Planet", Filter: "males"})
	require.ErrorIs(t, err, query.ErrInvalidInput)
}

func TestQueryService_ApplyCancelled(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Filter: "males"})
	require.ErrorIs(t, err, filter.ErrAborted)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueryService_DefinePersistsAndEvaluates(t *testing.T) {
	ctx := context.Background()
	svc, customPath := newService(t)

	detail, err := svc.Define(ctx, query.DefineRequest{
		Namespace: "Person",
		Definition: filterlist.Definition{
			Name:     "smithson men",
			Function: "and",
			Rules: []filterlist.RuleDef{
				{Class: "MatchesFilter", Values: []string{"males"}},
				{Class: "HasNameOf", Values: []string{"", "smithson", "", "", "", ""}},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, filterlist.ScopeCustom, detail.Scope)
	require.FileExists(t, customPath)

	res, err := svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Filter: "smithson men"})
	require.NoError(t, err)
	require.Equal(t, []string{"P1", "P3", "P6"}, res.Matches)

	// replacing keeps a single entry
	_, err = svc.Define(ctx, query.DefineRequest{
		Namespace:  "Person",
		Definition: filterlist.Definition{Name: "smithson men", Rules: []filterlist.RuleDef{{Class: "IsMale"}}},
	})
	require.NoError(t, err)
	list, err := svc.ListFilters("Person")
	require.NoError(t, err)
	require.Len(t, list, 3)

	diags, err := svc.Reload(ctx)
	require.NoError(t, err)
	require.Empty(t, diags)
	detail, err = svc.GetFilter("Person", "smithson men")
	require.NoError(t, err)
	require.Equal(t, "IsMale", detail.Definition.Rules[0].Class)
}

func TestQueryService_DefineValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cases := []struct {
		name string
		req  query.DefineRequest
		err  error
	}{
		{"missing name", query.DefineRequest{Namespace: "Person"}, query.ErrInvalidInput},
		{"unknown namespace", query.DefineRequest{Namespace: "Ship", Definition: filterlist.Definition{Name: "x"}}, query.ErrInvalidInput},
		{"unknown function", query.DefineRequest{Namespace: "Person", Definition: filterlist.Definition{Name: "x", Function: "xor"}}, query.ErrInvalidInput},
		{"unknown rule", query.DefineRequest{Namespace: "Person", Definition: filterlist.Definition{
			Name: "x", Rules: []filterlist.RuleDef{{Class: "NoSuchRule"}},
		}}, query.ErrInvalidInput},
		{"bad regex", query.DefineRequest{Namespace: "Person", Definition: filterlist.Definition{
			Name: "x", Rules: []filterlist.RuleDef{{Class: "RegExpName", Values: []string{"Smith("}}},
		}}, query.ErrInvalidInput},
		{"system name", query.DefineRequest{Namespace: "Person", Definition: filterlist.Definition{Name: "males"}}, query.ErrSystemFilter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Define(ctx, tc.req)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestQueryService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Define(ctx, query.DefineRequest{
		Namespace:  "Person",
		Definition: filterlist.Definition{Name: "temp", Rules: []filterlist.RuleDef{{Class: "IsFemale"}}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "Person", "temp"))
	require.ErrorIs(t, svc.Delete(ctx, "Person", "temp"), query.ErrFilterNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "Person", "males"), query.ErrSystemFilter)

	_, err = svc.Reload(ctx)
	require.NoError(t, err)
	_, err = svc.GetFilter("Person", "temp")
	require.ErrorIs(t, err, query.ErrFilterNotFound)
}

func TestQueryService_FailedSaveKeepsFilters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg := rules.NewRegistry()
	filters := filterlist.NewContext(filepath.Join(dir, "system.yaml"), filepath.Join(dir, "custom", "filters.yaml"), reg, nil)
	require.NoError(t, filters.Load())
	svc := query.NewService(testdb.Sample(t), reg, filters, nil)

	_, err := svc.Define(ctx, query.DefineRequest{
		Namespace:  "Person",
		Definition: filterlist.Definition{Name: "women", Rules: []filterlist.RuleDef{{Class: "IsFemale"}}},
	})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "custom")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom"), []byte("x"), 0o644))

	_, err = svc.Define(ctx, query.DefineRequest{
		Namespace:  "Person",
		Definition: filterlist.Definition{Name: "women", Rules: []filterlist.RuleDef{{Class: "IsMale"}}},
	})
	require.Error(t, err)
	require.Error(t, svc.Delete(ctx, "Person", "women"))

	detail, err := svc.GetFilter("Person", "women")
	require.NoError(t, err)
	require.Equal(t, "IsFemale", detail.Definition.Rules[0].Class)
}

func TestQueryService_CyclicDefinitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	for name, ref := range map[string]string{"A": "B", "B": "A"} {
		_, err := svc.Define(ctx, query.DefineRequest{
			Namespace:  "Person",
			Definition: filterlist.Definition{Name: name, Rules: []filterlist.RuleDef{{Class: "MatchesFilter", Values: []string{ref}}}},
		})
		require.NoError(t, err)
	}

	_, err := svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Filter: "A"})
	require.ErrorIs(t, err, filter.ErrCyclicReference)

	// the failed run leaves the filters usable
	require.NoError(t, svc.Delete(ctx, "Person", "B"))
	res, err := svc.Apply(ctx, query.ApplyRequest{Namespace: "Person", Filter: "A"})
	require.NoError(t, err)
	require.Empty(t, res.Matches)
}

func TestQueryService_ReloadDiagnostics(t *testing.T) {
	ctx := context.Background()
	svc, customPath := newService(t)

	require.NoError(t, os.WriteFile(customPath, []byte(`
version: 1
objects:
  - type: Family
    filters:
      - name: broken
        rules:
          - class: NoSuchRule
            values: []
      - name: married
        rules:
          - class: HasRelType
            values: ["Married"]
`), 0o644))

	diags, err := svc.Reload(ctx)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.Equal(t, "broken", diags[0].Filter)
	require.Equal(t, diags, svc.Diagnostics())

	res, err := svc.Apply(ctx, query.ApplyRequest{Namespace: "Family", Filter: "married"})
	require.NoError(t, err)
	require.Equal(t, []string{"F1", "F2"}, res.Matches)
}
