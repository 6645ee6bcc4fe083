package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tide-ide/tide/internal/sidecar"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file" + sidecar.Suffix + ">...",
	Short: "Load task metadata from sidecar files without building the tree",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		for _, file := range args {
			n, err := a.ingestor.Ingest(ctx, file)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tasks\n", file, n)
		}
		return nil
	},
}
