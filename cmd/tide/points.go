package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tide-ide/tide/internal/timapi"
	"github.com/tide-ide/tide/pkg/models"
)

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Manage earned points",
}

var pointsSetCmd = &cobra.Command{
	Use:   "set <doc-path> <task-id> <points>",
	Short: "Record the current points of one task",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pts, err := strconv.ParseFloat(args[2], 64)
		if err != nil || pts < 0 {
			return fmt.Errorf("invalid points %q", args[2])
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.store.PutPoints(ctx, args[0], args[1], models.PointsRecord{CurrentPoints: models.Float(pts)}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s = %s\n", args[0], args[1], formatPoints(pts))
		return nil
	},
}

var pointsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch points for every known task from TIM",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		client := timapi.New(timapi.Options{
			BaseURL:    cfg.Tim.BaseURL,
			Token:      cfg.Tim.Token,
			Timeout:    cfg.Tim.Timeout,
			RetryCount: 3,
		})
		res, err := client.SyncPoints(ctx, a.store)
		fmt.Fprintf(cmd.OutOrStdout(), "updated %d, missing %d, failed %d\n", res.Updated, res.Missing, res.Failed)
		return err
	},
}

func init() {
	pointsCmd.AddCommand(pointsSetCmd, pointsSyncCmd)
}
