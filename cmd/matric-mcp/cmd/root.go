// Package cmd provides the CLI commands for the Matric MCP gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fortemi/matric-mcp/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "matric-mcp",
	Short: "Matric MCP - knowledge API gateway for AI agents",
	Long: `Matric MCP is a Model Context Protocol gateway for the Fortemi
knowledge API. AI-agent clients connect over stdio or HTTP and invoke
notes, search, tag, memory, and job operations as MCP tools.

Transports:
  stdio   One local client over stdin/stdout, authenticated by the
          configured backend API key.
  http    Remote clients over StreamableHTTP (POST/GET/DELETE /) or the
          legacy SSE binding (GET /sse + POST /messages), authenticated
          by OAuth bearer tokens via RFC 7662 introspection.

Configuration:
  Config is loaded from matric-mcp.yaml in the current directory,
  $HOME/.matric-mcp/, or /etc/matric-mcp/.

  Environment variables can override config values with the MATRIC_MCP_
  prefix. Example: MATRIC_MCP_BACKEND_URL=https://api.fortemi.com

Commands:
  start       Start the gateway
  stop        Stop the running gateway
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./matric-mcp.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
