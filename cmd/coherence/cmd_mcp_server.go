package main

import (
	"fmt"
	"path/filepath"

	"github.com/nvandessel/coherence/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run coherence as an MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  coherence_score     Score a scenario's seed scene or an inline scene
  coherence_simulate  Run the dynamics loop and return the step history
  coherence_resolve   Rank repair candidates for a scenario's conflict
  coherence_graph     Render a scene as DOT or JSON

Resources:
  coherence://scenarios/         Index of the built-in scenarios
  coherence://scenarios/{name}   A built-in scenario as YAML

Scenario files are read from the project root (--root) and from
~/.coherence/scenarios.

Example client configuration:
  {"command": "coherence", "args": ["mcp-server", "--root", "/path/to/project"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("failed to resolve root: %w", err)
			}

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			// stdout belongs to the protocol; diagnostics go to stderr.
			server, err := mcp.NewServer(&mcp.Config{
				Name:     "coherence",
				Version:  version,
				Root:     absRoot,
				Settings: cfg,
				Logger:   newLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}
}
