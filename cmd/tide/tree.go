package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tide-ide/tide/internal/explorer"
)

var treeOpts struct {
	json    bool
	yaml    bool
	plain   bool
	summary bool
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Build the course tree once and print it with points",
	Args:  cobra.NoArgs,
	RunE:  runTree,
}

func init() {
	f := treeCmd.Flags()
	f.BoolVar(&treeOpts.json, "json", false, "print the tree as JSON")
	f.BoolVar(&treeOpts.yaml, "yaml", false, "print the tree as YAML")
	f.BoolVar(&treeOpts.plain, "plain", false, "disable colours")
	f.BoolVar(&treeOpts.summary, "summary", false, "print one line per course")
	treeCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}

func runTree(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	out := cmd.OutOrStdout()
	if err := a.explorer.Refresh(ctx, explorer.TriggerManual); err != nil {
		switch {
		case errors.Is(err, explorer.ErrUnauthenticated):
			fmt.Fprintln(out, notice("Login to browse courses and tasks! (tide login)", treeOpts.plain))
			return nil
		case errors.Is(err, explorer.ErrConfigurationMissing):
			fmt.Fprintln(out, notice("Set the download path first: tide config set-path <dir>", treeOpts.plain))
			return nil
		}
		return err
	}

	if treeOpts.summary {
		sums, err := a.explorer.Summaries(ctx)
		if err != nil {
			return err
		}
		return printStructured(cmd, sums, func() string { return renderSummaries(sums, treeOpts.plain) })
	}

	items := a.explorer.Items(ctx)
	return printStructured(cmd, items, func() string { return renderItems(items, treeOpts.plain) })
}

func printStructured(cmd *cobra.Command, v interface{}, text func() string) error {
	out := cmd.OutOrStdout()
	switch {
	case treeOpts.json:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case treeOpts.yaml:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		_, err := fmt.Fprint(out, text())
		return err
	}
}
