// Package cmd provides the CLI commands for the egress proxy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinelgate/egressproxy/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "egressproxy",
	Short: "egressproxy - security egress proxy for untrusted AI agents",
	Long: `egressproxy mediates outbound network traffic for an untrusted AI agent.

It terminates every outbound connection, checks the destination against a
domain/method/path allowlist, sanitizes post content for prompt-injection
patterns, validates request and memory schemas, enforces per-action rate
limits, and writes a JSONL audit trail of every decision it makes.

Quick start:
  1. Create a config file: egressproxy.yaml
  2. Run: egressproxy start

Configuration:
  Config is loaded from egressproxy.yaml in the current directory,
  $HOME/.egressproxy/, or /etc/egressproxy/.

  Environment variables can override config values with the EGRESSPROXY_ prefix.
  Example: EGRESSPROXY_SERVER_PORT=8080

Commands:
  start       Start the proxy server
  stop        Stop the running server
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./egressproxy.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
