// Harrier MCP Server - Exposes fraud review capabilities as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/opensource-finance/harrier/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:   envOrDefault("HARRIER_API_URL", "http://localhost:8080"),
		TenantID: os.Getenv("HARRIER_TENANT_ID"),
	}

	if cfg.TenantID == "" {
		fmt.Fprintln(os.Stderr, "HARRIER_TENANT_ID is required")
		os.Exit(1)
	}

	s, err := mcpserver.NewMCPServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create MCP server: %v\n", err)
		os.Exit(1)
	}
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
