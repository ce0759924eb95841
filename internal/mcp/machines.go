package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/cmdline/internal/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type machinesParams struct{}

func (h *handler) machinesHandler(ctx context.Context, req *mcp.CallToolRequest, _ machinesParams) (*mcp.CallToolResult, any, error) {
	return textResult(formatMachines(h.config()))
}

func formatMachines(cfg *config.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Machines (%d):\n", len(cfg.Machines)+1)
	fmt.Fprintf(&b, "  %s (this host)\n", config.ReservedMachine)
	for _, name := range cfg.MachineNames() {
		m := cfg.Machines[name]
		fmt.Fprintf(&b, "  %s (%s@%s:%d)\n", name, m.UserOrDefault(), m.Host, m.PortOrDefault())
	}
	return b.String()
}
