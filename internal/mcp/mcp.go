// Package mcp provides the cmdline MCP server, registering the execution
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/cmdline"
	"github.com/deixis/cmdline/internal/config"
	"github.com/deixis/cmdline/internal/history"
	"github.com/deixis/cmdline/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	runner *runner.Runner
	store  history.Store
	logger *slog.Logger

	mu  sync.RWMutex
	cfg *config.Config // replaced when the client reports a workspace root
}

// NewServer creates an MCP server with all cmdline tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, store history.Store) *mcp.Server {
	h := &handler{
		runner: r,
		store:  store,
		logger: r.Logger,
		cfg:    cfg,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateConfigFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "cmdline", Version: cmdline.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cmd_execute",
		Description: `Run a program with arguments on this host or on configured remote machines.

The command is launched directly, not through a shell: arguments are passed verbatim.
The result is "output" with stdout when the program wrote nothing to stderr,
and "error" with stderr otherwise, regardless of exit status.
Results are stored for later lookup via cmd_inspect.`,
	}, h.executeHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cmd_inspect",
		Description: "Show a stored execution by the run ID printed by cmd_execute.",
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cmd_machines",
		Description: "List the machines commands can run on.",
	}, h.machinesHandler)

	return s
}

func (h *handler) config() *config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// updateConfigFromRoots queries the client for MCP roots and reloads the
// configuration from the first file root. This is called during session
// initialization, before any tool calls.
func (h *handler) updateConfigFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil || loaded.Path == "" {
		return
	}

	h.mu.Lock()
	h.cfg = loaded.Config
	h.mu.Unlock()
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
