package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tide-ide/tide/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configSetPathCmd = &cobra.Command{
	Use:   "set-path <dir>",
	Short: "Set the course download path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if err := cfg.Set(config.KeyDownloadPath, dir); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)
		if err := a.explorer.SetDownloadPath(ctx, dir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Download path set to %s\n", dir)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings := v.AllSettings()
		if s, ok := settings["server"].(map[string]interface{}); ok && s["api_secret"] != "" {
			s["api_secret"] = "********"
		}
		if t, ok := settings["tim"].(map[string]interface{}); ok && t["token"] != "" {
			t["token"] = "********"
		}
		if f := cfg.File(); f != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", f)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(settings)
	},
}

func init() {
	configCmd.AddCommand(configSetPathCmd, configShowCmd)
}
