// Package testserver runs the full HTTP stack over the sample tree for
// end-to-end tests.
package testserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/filterlist"
	"github.com/rpggio/lineage/internal/mcp"
	"github.com/rpggio/lineage/internal/rules"
	"github.com/rpggio/lineage/internal/sqlite"
	"github.com/rpggio/lineage/internal/testdb"
	"github.com/rpggio/lineage/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server     *httptest.Server
	Store      *sqlite.Store
	Service    *query.Service
	Token      string
	CustomPath string
}

// New starts a server with token auth over testdb.Sample. systemFilters is
// the YAML content of the read-only filter list and may be empty.
func New(t *testing.T, token, systemFilters string) *TestServer {
	t.Helper()

	dir := t.TempDir()
	systemPath := filepath.Join(dir, "system_filters.yaml")
	customPath := filepath.Join(dir, "custom_filters.yaml")
	if systemFilters != "" {
		require.NoError(t, os.WriteFile(systemPath, []byte(systemFilters), 0o644))
	}

	store := testdb.Sample(t)
	registry := rules.NewRegistry()
	filters := filterlist.NewContext(systemPath, customPath, registry, nil)
	require.NoError(t, filters.Load())
	svc := query.NewService(store, registry, filters, nil)

	verifier := transport.StaticToken{Token: token, Principal: "test"}
	mcpServer := mcp.NewServer(mcp.Config{
		Service:       svc,
		Verifier:      verifier,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)

	server := httptest.NewServer(transport.NewServer(svc, transport.Options{
		Auth: transport.AuthMiddleware(verifier),
		MCP:  mcpHandler,
	}))
	t.Cleanup(server.Close)

	return &TestServer{
		Server:     server,
		Store:      store,
		Service:    svc,
		Token:      token,
		CustomPath: customPath,
	}
}

// Connect opens an MCP client session over streamable HTTP.
func (ts *TestServer) Connect(t *testing.T, token string) (*sdkmcp.ClientSession, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearer{token: token, next: http.DefaultTransport}},
	}, nil)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { session.Close() })
	return session, nil
}

// NewRequest builds a REST request carrying the server token.
func (ts *TestServer) NewRequest(t *testing.T, method, path string, body string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.Token)
	return req
}

type bearer struct {
	token string
	next  http.RoundTripper
}

func (b bearer) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.next.RoundTrip(r)
}
