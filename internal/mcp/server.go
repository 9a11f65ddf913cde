package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/filterlist"
)

// QueryService defines the filter operations needed by MCP.
type QueryService interface {
	ListRules(ns string) ([]query.RuleSummary, error)
	ListFilters(ns string) ([]query.FilterSummary, error)
	GetFilter(ns, name string) (*query.FilterDetail, error)
	Apply(ctx context.Context, req query.ApplyRequest) (*query.ApplyResult, error)
	Define(ctx context.Context, req query.DefineRequest) (*query.FilterDetail, error)
	Delete(ctx context.Context, ns, name string) error
	Reload(ctx context.Context) ([]filterlist.Diagnostic, error)
}

// Config contains server configuration.
type Config struct {
	Service       QueryService
	Verifier      TokenVerifier
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "lineage",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is local only, so it never authenticates.
	auth := noAuthMiddleware()
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled && cfg.Verifier != nil {
		auth = authMiddleware(cfg.Verifier)
	}
	// The first middleware runs first, so traffic logs carry the principal.
	server.AddReceivingMiddleware(auth, trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Service, cfg.Logger)

	return server
}
