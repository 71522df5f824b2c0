package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or end the stored conversation session",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, o)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if asJSON {
				info, err := a.ctrl.SessionInfo(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			printSessionInfo(ctx, out, newStyles(a.ctrl.Theme()), a)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	expire := &cobra.Command{
		Use:   "expire",
		Short: "End the current thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, o)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.ctrl.ExpireSession(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session expired.")
			return nil
		},
	}

	cmd.AddCommand(show, expire)
	return cmd
}
