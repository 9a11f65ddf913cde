package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

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
      - name: females
        rules:
          - class: IsFemale
            values: []
`

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	systemPath := filepath.Join(dir, "system.yaml")
	require.NoError(t, os.WriteFile(systemPath, []byte(systemFilters), 0o644))

	reg := rules.NewRegistry()
	filters := filterlist.NewContext(systemPath, filepath.Join(dir, "custom.yaml"), reg, nil)
	require.NoError(t, filters.Load())
	svc := query.NewService(testdb.Sample(t), reg, filters, nil)

	server := httptest.NewServer(NewServer(svc, opts))
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHTTPServer_Health(t *testing.T) {
	server := newTestServer(t, Options{Auth: AuthMiddleware(StaticToken{Token: "secret"})})

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "health is not behind auth")

	resp, err = http.Get(server.URL + "/api/filters/Person")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPServer_ApplyNamed(t *testing.T) {
	server := newTestServer(t, Options{})

	resp, data := do(t, http.MethodPost, server.URL+"/api/apply/Person", `{"filter":"females","handles":["P7","P1","P2"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var res query.ApplyResult
	require.NoError(t, json.Unmarshal(data, &res))
	require.Equal(t, []string{"P7", "P2"}, res.Matches)
	require.Equal(t, 3, res.Candidates)
}

func TestHTTPServer_DefineListDelete(t *testing.T) {
	server := newTestServer(t, Options{})

	resp, data := do(t, http.MethodPut, server.URL+"/api/filters/Family/married",
		`{"function":"and","rules":[{"class":"HasRelType","values":["Married"]}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = do(t, http.MethodGet, server.URL+"/api/filters/Family", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Filters []query.FilterSummary `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Filters, 1)
	require.Equal(t, "married", list.Filters[0].Name)

	resp, data = do(t, http.MethodPost, server.URL+"/api/apply/Family", `{"filter":"married"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var res query.ApplyResult
	require.NoError(t, json.Unmarshal(data, &res))
	require.Equal(t, []string{"F1", "F2"}, res.Matches)

	resp, _ = do(t, http.MethodDelete, server.URL+"/api/filters/Family/married", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, server.URL+"/api/filters/Family/married", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPServer_ErrorStatus(t *testing.T) {
	server := newTestServer(t, Options{})

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown namespace", http.MethodGet, "/api/rules/Starship", "", http.StatusBadRequest, "INVALID_INPUT"},
		{"bad json", http.MethodPost, "/api/apply/Person", `{"filter":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", http.MethodPost, "/api/apply/Person", `{"name":"females"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing filter", http.MethodPost, "/api/apply/Person", `{"filter":"nobody"}`, http.StatusNotFound, "FILTER_NOT_FOUND"},
		{"param count", http.MethodPost, "/api/apply/Person", `{"filter":"females","params":["x"]}`, http.StatusBadRequest, "PARAM_COUNT"},
		{"system delete", http.MethodDelete, "/api/filters/Person/females", "", http.StatusForbidden, "READ_ONLY"},
		{"unknown rule", http.MethodPut, "/api/filters/Person/x", `{"rules":[{"class":"Nope"}]}`, http.StatusBadRequest, "UNKNOWN_RULE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := do(t, tc.method, server.URL+tc.path, tc.body)
			require.Equal(t, tc.status, resp.StatusCode, string(data))
			var body errorBody
			require.NoError(t, json.Unmarshal(data, &body))
			require.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestHTTPServer_RulesAndReload(t *testing.T) {
	server := newTestServer(t, Options{})

	resp, data := do(t, http.MethodGet, server.URL+"/api/rules/Note", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), "MatchesRegexpOf")

	resp, data = do(t, http.MethodPost, server.URL+"/api/reload", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"diagnostics":[]}`, string(data))
}

func TestHTTPServer_MountsMCP(t *testing.T) {
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	server := newTestServer(t, Options{MCP: mcpHandler})

	resp, _ := do(t, http.MethodPost, server.URL+"/mcp", `{}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}
