package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "staysched",
		Short:         "Reservation lifecycle engine: approvals, overlap resolution and time-driven stay transitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newReconcileCmd())
	root.AddCommand(newReservationCmd())
	root.AddCommand(newGuestCmd())
	root.AddCommand(newAccommodationCmd())
	root.AddCommand(newAccountCmd())
	root.AddCommand(newNotificationsCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
