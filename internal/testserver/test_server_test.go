package testserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/testserver"
	"github.com/stretchr/testify/require"
)

const systemFilters = `
version: 1
objects:
  - type: Person
    filters:
      - name: Smithsons
        rules:
          - class: HasNameOf
            values: ["", "Smithson", "", "", "", ""]
`

func TestEndToEnd_MCPOverHTTP(t *testing.T) {
	ts := testserver.New(t, "secret", systemFilters)
	session, err := ts.Connect(t, "secret")
	require.NoError(t, err)
	ctx := context.Background()

	defined, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name: "define_filter",
		Arguments: map[string]any{
			"namespace": "Person",
			"definition": map[string]any{
				"name":     "Smithson sons",
				"function": "and",
				"rules": []map[string]any{
					{"class": "MatchesFilter", "values": []string{"Smithsons"}},
					{"class": "IsChildOfFilterMatch", "values": []string{"Smithsons"}},
					{"class": "IsMale"},
				},
			},
		},
	})
	require.NoError(t, err)
	require.False(t, defined.IsError)

	applied, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "apply_filter",
		Arguments: map[string]any{"namespace": "Person", "filter": "Smithson sons"},
	})
	require.NoError(t, err)
	require.False(t, applied.IsError)

	var out struct {
		Matches []string `json:"matches"`
	}
	text, ok := applied.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	require.Equal(t, []string{"P3", "P6"}, out.Matches)

	saved, err := os.ReadFile(ts.CustomPath)
	require.NoError(t, err)
	require.Contains(t, string(saved), "Smithson sons")
}

func TestEndToEnd_MCPRequiresToken(t *testing.T) {
	ts := testserver.New(t, "secret", systemFilters)

	_, err := ts.Connect(t, "wrong")
	require.Error(t, err)
}

func TestEndToEnd_REST(t *testing.T) {
	ts := testserver.New(t, "secret", systemFilters)

	resp, err := http.DefaultClient.Do(ts.NewRequest(t, http.MethodPost, "/api/apply/Person",
		`{"filter":"Smithsons","handles":["P6","P2","P4"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var res query.ApplyResult
	require.NoError(t, json.Unmarshal(data, &res))
	require.Equal(t, []string{"P6", "P4"}, res.Matches)
}
