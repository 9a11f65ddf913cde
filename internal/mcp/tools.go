package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/filterlist"
)

// progressEvery is how many candidates pass between progress notifications.
const progressEvery = 100

func registerTools(server *sdkmcp.Server, svc QueryService, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_rules",
		Description: "List the rules available for a record type, with their parameter labels and categories",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in NamespaceParams) (*sdkmcp.CallToolResult, ListRulesResult, error) {
		rules, err := svc.ListRules(in.Namespace)
		if err != nil {
			return nil, ListRulesResult{}, toolError(err)
		}
		return nil, ListRulesResult{Rules: rules}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_filters",
		Description: "List the system and custom filters defined for a record type",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in NamespaceParams) (*sdkmcp.CallToolResult, ListFiltersResult, error) {
		filters, err := svc.ListFilters(in.Namespace)
		if err != nil {
			return nil, ListFiltersResult{}, toolError(err)
		}
		return nil, ListFiltersResult{Filters: filters}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_filter",
		Description: "Get the full definition of a named filter",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in FilterRefParams) (*sdkmcp.CallToolResult, query.FilterDetail, error) {
		detail, err := svc.GetFilter(in.Namespace, in.Name)
		if err != nil {
			return nil, query.FilterDetail{}, toolError(err)
		}
		return nil, *detail, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name: "apply_filter",
		Description: "Evaluate a named filter or an ad-hoc definition and return the matching record handles " +
			"in candidate order. Sends progress notifications when the request carries a progress token.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, in ApplyFilterParams) (*sdkmcp.CallToolResult, ApplyFilterResult, error) {
		applyReq := query.ApplyRequest{
			Namespace: in.Namespace,
			Filter:    in.Filter,
			Params:    in.Params,
			Handles:   in.Handles,
			Progress:  progressNotifier(ctx, req, logger),
		}
		if in.Definition != nil {
			def := in.Definition.definition()
			applyReq.Definition = &def
		}
		if v := in.Visibility; v != nil {
			applyReq.Visibility = &query.Visibility{People: v.People, Events: v.Events, Notes: v.Notes}
		}

		res, err := svc.Apply(ctx, applyReq)
		if err != nil {
			return nil, ApplyFilterResult{}, toolError(err)
		}
		return nil, ApplyFilterResult{
			RunID:      res.RunID,
			Namespace:  res.Namespace,
			Filter:     res.Filter,
			Matches:    res.Matches,
			Count:      len(res.Matches),
			Candidates: res.Candidates,
			ElapsedMS:  res.Elapsed.Milliseconds(),
		}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "define_filter",
		Description: "Create or replace a custom filter and save the custom filter list",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in DefineFilterParams) (*sdkmcp.CallToolResult, query.FilterDetail, error) {
		detail, err := svc.Define(ctx, query.DefineRequest{
			Namespace:  in.Namespace,
			Definition: in.Definition.definition(),
		})
		if err != nil {
			return nil, query.FilterDetail{}, toolError(err)
		}
		return nil, *detail, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_filter",
		Description: "Delete a custom filter and save the custom filter list",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in FilterRefParams) (*sdkmcp.CallToolResult, DeleteFilterResult, error) {
		if err := svc.Delete(ctx, in.Namespace, in.Name); err != nil {
			return nil, DeleteFilterResult{}, toolError(err)
		}
		return nil, DeleteFilterResult{Deleted: true}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "reload_filters",
		Description: "Re-read the system and custom filter files and report entries that were skipped",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, ReloadResult, error) {
		diags, err := svc.Reload(ctx)
		if err != nil {
			return nil, ReloadResult{}, toolError(err)
		}
		if diags == nil {
			diags = []filterlist.Diagnostic{}
		}
		return nil, ReloadResult{Diagnostics: diags}, nil
	})
}

// progressNotifier forwards evaluation progress to the client when the call
// carries a progress token. Notifications are sent every progressEvery
// candidates and for the last one.
func progressNotifier(ctx context.Context, req *sdkmcp.CallToolRequest, logger *slog.Logger) func(done, total int) {
	if req == nil || req.Session == nil || req.Params == nil {
		return nil
	}
	token, ok := req.Params.GetMeta()["progressToken"]
	if !ok || token == nil {
		return nil
	}

	var last time.Time
	return func(done, total int) {
		if done%progressEvery != 0 && done != total {
			return
		}
		err := req.Session.NotifyProgress(ctx, &sdkmcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(done),
			Total:         float64(total),
			Message:       fmt.Sprintf("%d of %d records checked", done, total),
		})
		if err != nil && time.Since(last) > time.Second {
			last = time.Now()
			logger.Debug("progress notification failed", "error", err)
		}
	}
}
