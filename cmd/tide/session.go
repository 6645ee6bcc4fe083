package main

import (
	"errors"
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/tide-ide/tide/internal/explorer"
	"github.com/tide-ide/tide/pkg/tree"
)

var loginUser string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Mark the session as logged in and build the tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		name := loginUser
		if name == "" {
			if u, err := user.Current(); err == nil {
				name = u.Username
			}
		}

		err = a.explorer.Login(ctx, name)
		out := cmd.OutOrStdout()
		switch {
		case errors.Is(err, explorer.ErrConfigurationMissing):
			fmt.Fprintf(out, "Logged in as %s. Set the download path with: tide config set-path <dir>\n", name)
			return nil
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "Logged in as %s. %d courses, %d nodes.\n",
			name, len(a.explorer.Roots()), tree.CountForest(a.explorer.Roots()))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the session and the course tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.explorer.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "user name to record (default: current OS user)")
}
