package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newGuestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Guest-wide reservation operations",
	}
	cmd.AddCommand(newGuestHasActiveCmd())
	cmd.AddCommand(newGuestPurgeCmd())
	return cmd
}

func newGuestHasActiveCmd() *cobra.Command {
	var host bool
	c := &cobra.Command{
		Use:   "has-active <account-id>",
		Short: "Report whether the account has a stay in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				check := a.engine.HasActiveReservations
				if host {
					check = a.engine.HasHostActiveReservations
				}
				ok, err := check(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%t\n", ok)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&host, "host", false, "treat the id as a host and check its accommodations")
	return c
}

func newGuestPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <guest-id>",
		Short: "Delete every reservation of a guest, refusing while a stay is in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				n, err := a.engine.DeleteGuestReservations(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d reservation(s) of %s\n", n, args[0])
				return nil
			})
		},
	}
}
