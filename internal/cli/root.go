// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global flags shared by every command.
var (
	configPath  string
	domainFlag  string
	storageFlag string
	logLevel    string
	metricsAddr string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with the documentation assistant",
	Long: `docchat is a terminal client for the documentation portal's chat assistant.

Answers stream in as markdown, followed by the documents they were drawn
from. Conversations are remembered per domain: reopening a domain resumes
the conversation you left.

Run without a command to open the full-screen chat.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default ~/.docchat/config.toml)")
	pf.StringVarP(&domainFlag, "domain", "d", "", "chat domain (default chat.default_domain)")
	pf.StringVar(&storageFlag, "storage", "", "storage backend: sqlite, pebble, file or memory")
	pf.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error or disabled")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.BoolVar(&jsonOutput, "json", false, "print machine-readable JSON")
}

// Execute runs the command tree until ctx is canceled.
func Execute(ctx context.Context) error {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

// writeJSON prints the --json envelope for command and passes err through.
func writeJSON(cmd *cobra.Command, command string, data interface{}, err error) error {
	resp := NewJSONResponse(command, data)
	if err != nil {
		resp = NewJSONErrorResponse(command, err, data)
	}
	if werr := resp.Write(cmd.OutOrStdout()); werr != nil && err == nil {
		return werr
	}
	return err
}
