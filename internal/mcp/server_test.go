package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/lineage/internal/domain/query"
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
        rules:
          - class: IsMale
            values: []
`

func newClientSession(t *testing.T) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	systemPath := filepath.Join(dir, "system.yaml")
	require.NoError(t, os.WriteFile(systemPath, []byte(systemFilters), 0o644))
	reg := rules.NewRegistry()
	filters := filterlist.NewContext(systemPath, filepath.Join(dir, "custom.yaml"), reg, nil)
	require.NoError(t, filters.Load())

	server := NewServer(Config{
		Service:       query.NewService(testdb.Sample(t), reg, filters, nil),
		TransportMode: "stdio",
	})

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
		serverSession.Close()
	})
	return session
}

func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any, out any) *sdkmcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "CallTool %s failed", name)
	if out != nil {
		require.False(t, result.IsError, "tool %s returned error: %s", name, toolText(result))
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), out))
	}
	return result
}

func toolText(result *sdkmcp.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func TestServer_ListsTools(t *testing.T) {
	session := newClientSession(t)

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{
		"list_rules", "list_filters", "get_filter", "apply_filter",
		"define_filter", "delete_filter", "reload_filters",
	}, names)
}

func TestServer_ListRulesAndFilters(t *testing.T) {
	session := newClientSession(t)

	var rulesOut ListRulesResult
	callTool(t, session, "list_rules", map[string]any{"namespace": "Family"}, &rulesOut)
	names := map[string]bool{}
	for _, r := range rulesOut.Rules {
		names[r.Name] = true
	}
	require.True(t, names["HasRelType"])
	require.True(t, names["FatherHasIdOf"])

	var filtersOut ListFiltersResult
	callTool(t, session, "list_filters", map[string]any{"namespace": "Person"}, &filtersOut)
	require.Len(t, filtersOut.Filters, 1)
	require.Equal(t, "males", filtersOut.Filters[0].Name)
}

func TestServer_ApplyNamedAndAdHoc(t *testing.T) {
	session := newClientSession(t)

	var named ApplyFilterResult
	callTool(t, session, "apply_filter", map[string]any{"namespace": "Person", "filter": "males"}, &named)
	require.Equal(t, []string{"P1", "P3", "P6"}, named.Matches)
	require.Equal(t, 3, named.Count)
	require.Equal(t, 8, named.Candidates)

	var adhoc ApplyFilterResult
	callTool(t, session, "apply_filter", map[string]any{
		"namespace": "Event",
		"definition": map[string]any{
			"function": "or",
			"rules": []map[string]any{
				{"class": "HasType", "values": []string{"Death"}},
				{"class": "HasType", "values": []string{"Marriage"}},
			},
		},
		"handles": []string{"E3", "E2", "E1"},
	}, &adhoc)
	require.Equal(t, []string{"E3", "E2"}, adhoc.Matches)
}

func TestServer_DefineGetDelete(t *testing.T) {
	session := newClientSession(t)

	var defined query.FilterDetail
	callTool(t, session, "define_filter", map[string]any{
		"namespace": "Person",
		"definition": map[string]any{
			"name":  "by id",
			"rules": []map[string]any{{"class": "HasIdOf", "values": []string{""}}},
		},
	}, &defined)
	require.Equal(t, filterlist.ScopeCustom, defined.Scope)

	var applied ApplyFilterResult
	callTool(t, session, "apply_filter", map[string]any{
		"namespace": "Person", "filter": "by id", "params": []string{"I0004"},
	}, &applied)
	require.Equal(t, []string{"P4"}, applied.Matches)

	var got query.FilterDetail
	callTool(t, session, "get_filter", map[string]any{"namespace": "Person", "name": "by id"}, &got)
	require.Equal(t, []string{""}, got.Definition.Rules[0].Values)

	var deleted DeleteFilterResult
	callTool(t, session, "delete_filter", map[string]any{"namespace": "Person", "name": "by id"}, &deleted)
	require.True(t, deleted.Deleted)

	res := callTool(t, session, "get_filter", map[string]any{"namespace": "Person", "name": "by id"}, nil)
	require.True(t, res.IsError)
	require.Contains(t, toolText(res), "FILTER_NOT_FOUND")
}

func TestServer_ToolErrors(t *testing.T) {
	session := newClientSession(t)

	res := callTool(t, session, "delete_filter", map[string]any{"namespace": "Person", "name": "males"}, nil)
	require.True(t, res.IsError)
	require.Contains(t, toolText(res), "READ_ONLY")

	res = callTool(t, session, "apply_filter", map[string]any{
		"namespace": "Person", "filter": "males", "params": []string{"x"},
	}, nil)
	require.True(t, res.IsError)
	require.Contains(t, toolText(res), "PARAM_COUNT")

	res = callTool(t, session, "list_rules", map[string]any{"namespace": "Starship"}, nil)
	require.True(t, res.IsError)
	require.Contains(t, toolText(res), "INVALID_INPUT")
}

func TestServer_ReadsDocs(t *testing.T) {
	session := newClientSession(t)

	res, err := session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "lineage://docs/filter-format"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "objects:")
}
