package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Read delivered notifications",
	}
	cmd.AddCommand(newNotificationsListCmd())
	return cmd
}

func newNotificationsListCmd() *cobra.Command {
	var (
		recipient string
		limit     int64
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List the newest notifications of an account (requires MONGO_URI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.inbox == nil {
					return errors.New("notification inbox is not configured (set MONGO_URI)")
				}
				ns, err := a.inbox.ListForRecipient(ctx, recipient, limit)
				if err != nil {
					return err
				}
				for _, n := range ns {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s reservation=%s %s\n",
						n.CreatedAt.UTC().Format(time.RFC3339), n.Kind, n.ReservationID, n.Text)
				}
				return nil
			})
		},
	}
	c.Flags().StringVar(&recipient, "recipient", "", "account id")
	c.Flags().Int64Var(&limit, "limit", 20, "maximum number of notifications (0 for all)")
	_ = c.MarkFlagRequired("recipient")
	return c
}
