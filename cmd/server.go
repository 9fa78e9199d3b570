package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the deferred task scheduler, the reconciliation sweep and notification delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, openOptions{migrate: migrateUp})
			if err != nil {
				return err
			}
			defer a.Close()

			a.log.WithFields(logrus.Fields{
				"version":            Version,
				"backend":            a.cfg.StoreBackend,
				"tick":               a.cfg.TickInterval.String(),
				"reconcile_interval": a.cfg.ReconcileInterval.String(),
			}).Info("staysched server starting")

			// RunReconciler sweeps once before its first tick, so tasks lost
			// while the process was down are re-armed right away.
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.sched.Run(gctx) })
			g.Go(func() error { return a.engine.RunReconciler(gctx, a.cfg.ReconcileInterval) })

			err = g.Wait()
			a.log.Info("staysched server stopped")
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), openOptions{migrate: true})
			if err != nil {
				return err
			}
			a.Close()
			return nil
		},
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Re-derive every open reservation's status from today's date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.engine.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled: %d reservation(s) changed status\n", n)
			return nil
		},
	}
}
