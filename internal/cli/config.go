// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after the file, environment and flags are applied.",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one value, e.g. api.base_url",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one value in the config file",
	Long: `Change one value in the config file and save it. Only the file is
read and written, so environment overrides are never persisted. Lists take
comma-separated values.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every config key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return writeJSON(cmd, "config keys", config.GetAllKeys(), nil)
		}
		for _, k := range config.GetAllKeys() {
			cmd.Println(k)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configPathCmd, configKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func effectiveConfig() (*config.Config, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	return cfg, nil
}

// configFile returns the file config set writes: --config or config.toml.
func configFile() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.PathTOML()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig()
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd, "config show", cfg, nil)
	}
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig()
	if err != nil {
		return err
	}
	v, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd, "config get", map[string]interface{}{"key": args[0], "value": v}, nil)
	}
	cmd.Println(v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return statErr
	}

	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", args[0], err)
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return err
	}

	if jsonOutput {
		v, _ := cfg.Get(args[0])
		return writeJSON(cmd, "config set", map[string]interface{}{"key": args[0], "value": v, "path": path}, nil)
	}
	cmd.Printf("Set %s in %s\n", args[0], path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configFile()
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd, "config path", map[string]string{"path": path}, nil)
	}
	cmd.Println(path)
	return nil
}
