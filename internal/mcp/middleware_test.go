package mcp

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	principal, ok := v[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return principal, nil
}

func capture(principal *string) sdkmcp.MethodHandler {
	return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
		*principal = getPrincipal(ctx)
		return &sdkmcp.CallToolResult{}, nil
	}
}

func requestWithAuth(auth string) *sdkmcp.CallToolRequest {
	header := http.Header{}
	if auth != "" {
		header.Set("Authorization", auth)
	}
	return &sdkmcp.CallToolRequest{
		Params: &sdkmcp.CallToolParamsRaw{Name: "list_rules"},
		Extra:  &sdkmcp.RequestExtra{Header: header},
	}
}

func TestAuthMiddleware(t *testing.T) {
	var principal string
	handler := authMiddleware(staticVerifier{"secret": "alice"})(capture(&principal))

	_, err := handler(context.Background(), "tools/call", requestWithAuth("Bearer secret"))
	require.NoError(t, err)
	require.Equal(t, "alice", principal)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	var principal string
	handler := authMiddleware(staticVerifier{"secret": "alice"})(capture(&principal))

	for _, auth := range []string{"", "Bearer", "Bearer wrong"} {
		_, err := handler(context.Background(), "tools/call", requestWithAuth(auth))
		require.Error(t, err, "auth header %q", auth)
		require.Contains(t, err.Error(), "unauthorized")
	}
	require.Empty(t, principal)

	_, err := handler(context.Background(), "ping", requestWithAuth(""))
	require.NoError(t, err, "protocol methods skip auth")
}

func TestNoAuthMiddleware(t *testing.T) {
	var principal string
	handler := noAuthMiddleware()(capture(&principal))

	_, err := handler(context.Background(), "tools/call", requestWithAuth(""))
	require.NoError(t, err)
	require.Equal(t, Local, principal)
}

func TestFormatPayload_Truncates(t *testing.T) {
	long := make([]string, 1000)
	for i := range long {
		long[i] = "P0001"
	}
	out := formatPayload(long)
	require.Contains(t, out, "bytes)")
	require.Less(t, len(out), maxLoggedPayload+64)
	require.Equal(t, "<nil>", formatPayload(nil))
}
