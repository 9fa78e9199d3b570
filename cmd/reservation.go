package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/stay-scheduler/internal/application/lifecycle"
	"github.com/example/stay-scheduler/internal/domain/reservation"
)

const dateLayout = "2006-01-02"

func newReservationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservation",
		Aliases: []string{"res"},
		Short:   "Submit and decide reservation requests",
	}
	cmd.AddCommand(newReservationSubmitCmd())
	cmd.AddCommand(newReservationActionCmd("accept", "Approve a pending request", (*lifecycle.Engine).Accept))
	cmd.AddCommand(newReservationActionCmd("deny", "Deny a pending request", (*lifecycle.Engine).Deny))
	cmd.AddCommand(newReservationActionCmd("cancel", "Cancel a pending request or an approved stay", (*lifecycle.Engine).Cancel))
	cmd.AddCommand(newReservationShowCmd())
	cmd.AddCommand(newReservationListCmd())
	cmd.AddCommand(newReservationDeleteRequestCmd())
	cmd.AddCommand(newReservationOverlapsCmd())
	return cmd
}

func newReservationSubmitCmd() *cobra.Command {
	var (
		accommodationID string
		guestID         string
		hostID          string
		start           string
		days            int
		price           float64
	)

	c := &cobra.Command{
		Use:   "submit",
		Short: "Request a stay",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDay(start)
			if err != nil {
				return fmt.Errorf("invalid --start (want YYYY-MM-DD)")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				r, err := a.engine.Submit(ctx, reservation.SubmitRequest{
					AccommodationID: accommodationID,
					GuestID:         guestID,
					HostID:          hostID,
					StartDate:       startDate,
					DurationDays:    days,
					Price:           price,
				})
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), r)
				return nil
			})
		},
	}

	c.Flags().StringVar(&accommodationID, "accommodation", "", "accommodation id")
	c.Flags().StringVar(&guestID, "guest", "", "guest account id")
	c.Flags().StringVar(&hostID, "host", "", "host account id (defaults to the accommodation's host)")
	c.Flags().StringVar(&start, "start", "", "first day of the stay YYYY-MM-DD")
	c.Flags().IntVar(&days, "days", 1, "number of nights")
	c.Flags().Float64Var(&price, "price", 0, "total price")

	_ = c.MarkFlagRequired("accommodation")
	_ = c.MarkFlagRequired("guest")
	_ = c.MarkFlagRequired("start")
	return c
}

func newReservationActionCmd(use, short string, action func(*lifecycle.Engine, context.Context, string) (reservation.Reservation, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <reservation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				r, err := action(a.engine, ctx, args[0])
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), r)
				return nil
			})
		},
	}
}

func newReservationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <reservation-id>",
		Short: "Show a reservation and its cancellation deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				r, err := a.engine.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printReservation(cmd.OutOrStdout(), r)
				if r.Status == reservation.StatusApproved {
					deadline, err := a.engine.CancellationDeadline(ctx, r.ID)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "  cancellable through %s\n", deadline.Format(dateLayout))
				}
				return nil
			})
		},
	}
}

func newReservationListCmd() *cobra.Command {
	var (
		guestID, hostID string
		view            string
	)
	c := &cobra.Command{
		Use:   "list",
		Short: "List reservations of a guest or a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (guestID == "") == (hostID == "") {
				return fmt.Errorf("exactly one of --guest or --host is required")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var (
					rs  []reservation.Reservation
					err error
				)
				e := a.engine
				switch {
				case view == "all" && guestID != "":
					rs, err = e.ListByGuest(ctx, guestID)
				case view == "all":
					rs, err = e.ListByHost(ctx, hostID)
				case view == "requests" && guestID != "":
					rs, err = e.RequestsByGuest(ctx, guestID)
				case view == "requests":
					rs, err = e.RequestsByHost(ctx, hostID)
				case view == "decided" && guestID != "":
					rs, err = e.DecidedByGuest(ctx, guestID)
				case view == "decided":
					rs, err = e.DecidedByHost(ctx, hostID)
				default:
					return fmt.Errorf("invalid --view %q (want all, requests or decided)", view)
				}
				if err != nil {
					return err
				}
				for _, r := range rs {
					printReservation(cmd.OutOrStdout(), r)
				}
				return nil
			})
		},
	}
	c.Flags().StringVar(&guestID, "guest", "", "guest account id")
	c.Flags().StringVar(&hostID, "host", "", "host account id")
	c.Flags().StringVar(&view, "view", "all", "all, requests (awaiting a decision) or decided")
	return c
}

func newReservationDeleteRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-request <reservation-id>",
		Short: "Delete a request that was never decided",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.engine.DeleteRequest(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted request %s\n", args[0])
				return nil
			})
		},
	}
}

func newReservationOverlapsCmd() *cobra.Command {
	var accommodationID, start, end string
	c := &cobra.Command{
		Use:   "overlaps-active",
		Short: "Report whether a stay is in progress at an accommodation within a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := parseDay(start)
			if err != nil {
				return fmt.Errorf("invalid --start (want YYYY-MM-DD)")
			}
			e, err := parseDay(end)
			if err != nil {
				return fmt.Errorf("invalid --end (want YYYY-MM-DD)")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ok, err := a.engine.OverlapsActive(ctx, accommodationID, s, e)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%t\n", ok)
				return nil
			})
		},
	}
	c.Flags().StringVar(&accommodationID, "accommodation", "", "accommodation id")
	c.Flags().StringVar(&start, "start", "", "range start YYYY-MM-DD")
	c.Flags().StringVar(&end, "end", "", "range end YYYY-MM-DD (exclusive)")
	_ = c.MarkFlagRequired("accommodation")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

// withApp opens the application for the duration of one command.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, openOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return reservation.Day(t), nil
}

func printReservation(w io.Writer, r reservation.Reservation) {
	fmt.Fprintf(w, "id=%s status=%s accommodation=%s guest=%s host=%s stay=%s..%s nights=%d price=%.2f created=%s\n",
		r.ID, r.Status, r.AccommodationID, r.GuestID, r.HostID,
		r.StartDate.Format(dateLayout), r.EndDate().Format(dateLayout), r.DurationDays, r.Price,
		r.DateCreated.Format(dateLayout))
}
