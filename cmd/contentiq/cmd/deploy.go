package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/symplistic/contentiq-widget/internal/theme"
)

func newValidateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the backend accepts the embed token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(o)
			if err != nil {
				return err
			}
			if err := c.ValidateToken(cmd.Context()); err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token valid for agent %s\n", c.AgentID())
			return nil
		},
	}
}

func newStylingCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "styling",
		Short: "Print the widget theme after applying the backend's overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(o)
			if err != nil {
				return err
			}
			overrides, err := c.FetchStyling(cmd.Context())
			if err != nil {
				return err
			}
			merged, warnings := theme.Default().Merge(overrides)
			for _, w := range warnings {
				o.logger.Warn("ignoring styling override", "detail", w)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(merged)
		},
	}
}
