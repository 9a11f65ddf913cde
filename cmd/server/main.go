package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/lineage/internal/config"
	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/filterlist"
	"github.com/rpggio/lineage/internal/mcp"
	"github.com/rpggio/lineage/internal/rules"
	"github.com/rpggio/lineage/internal/sqlite"
	"github.com/rpggio/lineage/internal/transport"
)

var version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog := newLogger(cfg.Log, cfg.Transport.Mode == "stdio")
	defer closeLog()

	if cfg.DB.Driver == sqlite.DriverSQLite {
		if err := makeSQLiteDir(cfg.DB.DSN); err != nil {
			logger.Error("failed to prepare database path", "error", err)
			os.Exit(1)
		}
	}

	db, err := sqlite.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DB.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	store := sqlite.NewStore(db)
	if cfg.DB.Import != "" {
		if err := importDump(store, cfg.DB.Import, logger); err != nil {
			logger.Error("failed to import records", "path", cfg.DB.Import, "error", err)
			os.Exit(1)
		}
	}

	registry := rules.NewRegistry()
	filters := filterlist.NewContext(cfg.Filters.SystemPath, cfg.Filters.CustomPath, registry, logger)
	if err := filters.Load(); err != nil {
		logger.Error("failed to load filters", "error", err)
		os.Exit(1)
	}
	logger.Info("filters loaded",
		"system", cfg.Filters.SystemPath,
		"custom", cfg.Filters.CustomPath,
		"diagnostics", len(filters.Diagnostics()),
	)

	svc := query.NewService(store, registry, filters, logger)
	verifier := transport.StaticToken{Token: cfg.Auth.Token}

	mcpServer := mcp.NewServer(mcp.Config{
		Service:       svc,
		Verifier:      verifier,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Version:       version,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		runStdioMode(logger, svc, mcpServer)
	} else {
		var auth func(http.Handler) http.Handler
		if cfg.Auth.Enabled {
			auth = transport.AuthMiddleware(verifier)
		}
		runHTTPMode(logger, svc, mcpServer, auth, cfg.Server.Host, cfg.Server.Port)
	}
}

func importDump(store *sqlite.Store, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := store.Import(context.Background(), f)
	if err != nil {
		return err
	}
	logger.Info("records imported", "path", path, "records", n)
	return nil
}

// awaitStop reloads the filter files on SIGHUP and returns once SIGINT or
// SIGTERM arrives.
func awaitStop(logger *slog.Logger, svc *query.Service) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for sig := range sigs {
		if sig != syscall.SIGHUP {
			logger.Info("stopping", "signal", sig.String())
			return
		}
		diags, err := svc.Reload(context.Background())
		if err != nil {
			logger.Error("filter reload failed", "error", err)
			continue
		}
		logger.Info("filters reloaded", "diagnostics", len(diags))
	}
}

func runStdioMode(logger *slog.Logger, svc *query.Service, mcpServer *sdkmcp.Server) {
	logger.Info("serving MCP over stdio")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		awaitStop(logger, svc)
		cancel()
	}()

	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("stdio transport failed", "error", err)
		os.Exit(1)
	}
}

func runHTTPMode(logger *slog.Logger, svc *query.Service, mcpServer *sdkmcp.Server, auth func(http.Handler) http.Handler, host string, port int) {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := transport.NewServer(svc, transport.Options{
		Auth:   auth,
		MCP:    mcpHandler,
		Logger: logger,
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr, "auth", auth != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listener failed", "error", err)
		}
	}()

	awaitStop(logger, svc)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown incomplete", "error", err)
	}
}

const shutdownGrace = 5 * time.Second

// makeSQLiteDir creates the directory of a file-backed sqlite DSN. Both
// plain paths and file: URIs with query parameters are accepted.
func makeSQLiteDir(dsn string) error {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
