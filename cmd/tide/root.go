package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tide-ide/tide/internal/config"
	"github.com/tide-ide/tide/internal/logging"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	v       = config.NewViper()
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tide",
	Short: "Course task explorer for TIM",
	Long: `tide builds a tree of the courses, task sets and task files under the
configured download path and annotates every node with the points earned
so far. Use "tide serve" to expose it to an editor, or "tide tree" for a
one-shot view in the terminal.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(*cobra.Command, []string) { _ = logging.Sync() },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tide.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("download-path", "", "course material root, overrides the config file")

	_ = v.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag(config.KeyDownloadPath, rootCmd.PersistentFlags().Lookup("download-path"))

	rootCmd.AddCommand(serveCmd, treeCmd, loginCmd, logoutCmd, configCmd,
		pointsCmd, ingestCmd, tokenCmd, versionCmd)
}

func initConfig(*cobra.Command, []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: "stderr",
	}); err != nil {
		return fmt.Errorf("logging init: %w", err)
	}
	return nil
}
