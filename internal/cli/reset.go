// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/session"
)

var resetAll bool

var resetCmd = &cobra.Command{
	Use:   "reset [domain]",
	Short: "Start a new conversation for a domain",
	Long: `Forget the persisted conversation for a domain so the next question
starts a new one. Other domains keep their conversations unless --all is
given. Nothing is deleted on the server.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "reset every domain")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	var domains []string
	switch {
	case resetAll:
		domains, err = a.ids.Domains(ctx)
		if err != nil {
			return fmt.Errorf("list domains: %w", err)
		}
		sort.Strings(domains)
	case len(args) == 1:
		domains = []string{args[0]}
	default:
		domains = []string{a.domain()}
	}

	for _, domain := range domains {
		sess := session.New(a.deps, domain)
		sess.Reset("")
		sess.Close()

		if _, ok, err := a.ids.Get(ctx, domain); err != nil || ok {
			if err == nil {
				err = errors.New("conversation id still present")
			}
			return fmt.Errorf("reset %s: %w", domain, err)
		}
	}

	if jsonOutput {
		if domains == nil {
			domains = []string{}
		}
		return writeJSON(cmd, "reset", map[string]interface{}{"domains": domains}, nil)
	}
	if len(domains) == 0 {
		cmd.Println("No conversations to reset")
		return nil
	}
	for _, domain := range domains {
		cmd.Printf("Reset conversation for %s\n", domain)
	}
	return nil
}
