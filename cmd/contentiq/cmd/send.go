package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/symplistic/contentiq-widget/internal/domain"
)

func newSendCmd(o *options) *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ft domain.FeedbackType
			if feedback != "" {
				ft = domain.FeedbackType(feedback)
				if !ft.Explicit() {
					return fmt.Errorf("--feedback must be helpful or not_helpful, got %q", feedback)
				}
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, o)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			st := newStyles(a.ctrl.Theme())
			msg, sendErr := a.ctrl.Send(ctx, strings.Join(args, " "))
			if sendErr != nil && msg.Text == "" {
				return sendErr
			}
			a.printMessage(out, st, msg, "")
			if sendErr != nil {
				return sendErr
			}

			if ft != "" {
				if !msg.Trackable() {
					return fmt.Errorf("reply has no message id, feedback not sent")
				}
				if err := a.ctrl.Feedback(ctx, msg.MessageID, ft); err != nil {
					return fmt.Errorf("send feedback: %w", err)
				}
				fmt.Fprintln(out, st.muted.Render("Feedback sent: "+string(ft)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "Rate the reply: helpful or not_helpful")
	return cmd
}
