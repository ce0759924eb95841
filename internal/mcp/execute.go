package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deixis/cmdline/internal/history"
	"github.com/deixis/cmdline/internal/machines"
	"github.com/deixis/cmdline/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type executeParams struct {
	Command  string   `json:"command" jsonschema:"path or name of the program to run (e.g. /bin/ls)"`
	Args     []string `json:"args,omitempty" jsonschema:"arguments passed verbatim to the program"`
	Machines []string `json:"machines,omitempty" jsonschema:"machines to run on (see cmd_machines). Defaults to local."`
}

func (h *handler) executeHandler(ctx context.Context, req *mcp.CallToolRequest, params executeParams) (*mcp.CallToolResult, any, error) {
	if params.Command == "" {
		return errorResult("command is required")
	}
	names := params.Machines
	if len(names) == 0 {
		names = []string{"local"}
	}

	targets, err := machines.ResolveAll(h.config(), names)
	if err != nil {
		return errorResult(err.Error())
	}

	attempts := h.runner.ExecuteEach(ctx, targets, params.Command, params.Args)

	var b strings.Builder
	failed := false
	for i, a := range attempts {
		if i > 0 {
			fmt.Fprintln(&b)
		}
		if a.Err != nil {
			failed = true
			fmt.Fprintf(&b, "Target: %s\nResult: %s\n\n%v\n", a.Target, runner.FailureLabel(a.Err), a.Err)
			continue
		}
		rec := history.NewRecord(a, params.Command, params.Args)
		if a.Outcome.Kind == runner.KindError {
			failed = true
		}
		b.WriteString(history.Format(rec))
		if err := h.store.Save(rec); err != nil {
			h.logger.Warn("saving run", slog.String("run_id", rec.ID), slog.Any("error", err))
			fmt.Fprintf(&b, "\nWarning: run %s was not saved and cannot be inspected: %v\n", rec.ID, err)
		}
	}

	if failed {
		return errorResult(b.String())
	}
	return textResult(b.String())
}
