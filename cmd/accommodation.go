package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/stay-scheduler/internal/domain/reservation"
)

func newAccommodationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accommodation",
		Short: "Manage accommodation booking policies",
	}
	cmd.AddCommand(newAccommodationUpsertCmd())
	return cmd
}

func newAccommodationUpsertCmd() *cobra.Command {
	var (
		id               string
		hostID           string
		autoApprove      bool
		cancellationDays int
	)

	c := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update an accommodation's policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cancellationDays < 0 {
				return fmt.Errorf("--cancellation-days must not be negative")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				err := a.accommodations.Upsert(ctx, id, reservation.Policy{
					HostID:                   hostID,
					AutoApprove:              autoApprove,
					CancellationDeadlineDays: cancellationDays,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "accommodation %s: host=%s auto_approve=%t cancellation_days=%d\n",
					id, hostID, autoApprove, cancellationDays)
				return nil
			})
		},
	}

	c.Flags().StringVar(&id, "id", "", "accommodation id")
	c.Flags().StringVar(&hostID, "host", "", "host account id")
	c.Flags().BoolVar(&autoApprove, "auto-approve", false, "approve requests without a host decision")
	c.Flags().IntVar(&cancellationDays, "cancellation-days", 0, "days after the request during which an approved stay may be cancelled")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("host")
	return c
}
