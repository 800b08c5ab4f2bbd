// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/geo"
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage the location sent with questions",
	Long: `The assistant can tailor answers to your approximate location. It comes
from location.latitude/longitude in the config (with the country looked up
online) or, failing that, from IP geolocation. It is only sent after you
allow it.`,
}

var locationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved location",
	Args:  cobra.NoArgs,
	RunE:  runLocationShow,
}

var locationAllowCmd = &cobra.Command{
	Use:   "allow",
	Short: "Look up and save your location",
	Args:  cobra.NoArgs,
	RunE:  runLocationAllow,
}

var locationDenyCmd = &cobra.Command{
	Use:   "deny",
	Short: "Do not ask for a location again",
	Long: `Record that you were asked and declined. A location saved earlier is
kept; use "docchat location forget" to remove it.`,
	Args: cobra.NoArgs,
	RunE: runLocationDeny,
}

var locationForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove the saved location and ask again next time",
	Args:  cobra.NoArgs,
	RunE:  runLocationForget,
}

var locationDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Look up your location without saving it",
	Args:  cobra.NoArgs,
	RunE:  runLocationDetect,
}

func init() {
	locationCmd.AddCommand(locationShowCmd, locationAllowCmd, locationDenyCmd, locationForgetCmd, locationDetectCmd)
	rootCmd.AddCommand(locationCmd)
}

func printLocation(cmd *cobra.Command, command string, loc geo.Location) error {
	if jsonOutput {
		return writeJSON(cmd, command, loc, nil)
	}
	if loc.IsZero() {
		cmd.Println("No location")
		return nil
	}
	cmd.Println(loc.String())
	return nil
}

func runLocationShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.prefs.Location(cmd.Context())
	if !a.cfg.Location.Enabled && !jsonOutput {
		cmd.Println("Location is disabled (location.enabled = false)")
	}
	return printLocation(cmd, "location show", loc)
}

func runLocationAllow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.prefs.Prompt(ctx); err != nil {
		return err
	}
	loc, err := a.prefs.Allow(ctx)
	if err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return printLocation(cmd, "location allow", loc)
}

func runLocationDeny(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.prefs.Prompt(cmd.Context()); err != nil {
		return err
	}
	a.prefs.Deny()

	if jsonOutput {
		return writeJSON(cmd, "location deny", map[string]bool{"asked": true}, nil)
	}
	cmd.Println("You will not be asked for a location again")
	return nil
}

func runLocationForget(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.prefs.Forget(cmd.Context()); err != nil {
		return fmt.Errorf("forget location: %w", err)
	}
	if jsonOutput {
		return writeJSON(cmd, "location forget", map[string]bool{"forgotten": true}, nil)
	}
	cmd.Println("Saved location removed")
	return nil
}

func runLocationDetect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	return printLocation(cmd, "location detect", a.locator.Locate(cmd.Context()))
}
