package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/stay-scheduler/internal/domain/account"
	"github.com/example/stay-scheduler/internal/domain/notification"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage guest and host accounts",
	}
	cmd.AddCommand(newAccountUpsertCmd())
	cmd.AddCommand(newAccountShowCmd())
	return cmd
}

func newAccountUpsertCmd() *cobra.Command {
	var (
		id, role            string
		firstName, lastName string
		email               string
		notify              string
	)

	c := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update an account and its notification settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := account.Role(role)
			if r != account.RoleGuest && r != account.RoleHost {
				return fmt.Errorf("invalid --role %q (want guest or host)", role)
			}
			kinds, err := parseKinds(notify)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				acc := account.Account{
					ID:        id,
					Role:      r,
					FirstName: firstName,
					LastName:  lastName,
					Email:     email,
					Settings:  kinds,
				}
				if err := a.accounts.Upsert(ctx, acc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "account %s (%s): %d notification kind(s) enabled\n", id, r, len(kinds))
				return nil
			})
		},
	}

	c.Flags().StringVar(&id, "id", "", "account id")
	c.Flags().StringVar(&role, "role", string(account.RoleGuest), "guest or host")
	c.Flags().StringVar(&firstName, "first-name", "", "first name")
	c.Flags().StringVar(&lastName, "last-name", "", "last name")
	c.Flags().StringVar(&email, "email", "", "email address for notification mail")
	c.Flags().StringVar(&notify, "notify", "", "comma separated notification kinds: request, response, cancel (or the full setting names)")
	_ = c.MarkFlagRequired("id")
	return c
}

func newAccountShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				acc, err := a.accounts.Get(ctx, args[0])
				if err != nil {
					return err
				}
				settings := make([]string, 0, len(acc.Settings))
				for _, k := range acc.Settings {
					settings = append(settings, string(k))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id=%s role=%s name=%q email=%s cancellations=%d notify=%s\n",
					acc.ID, acc.Role, acc.DisplayName(), acc.Email, acc.TimesCancelled, strings.Join(settings, ","))
				return nil
			})
		},
	}
}

var kindAliases = map[string]notification.Kind{
	"request":  notification.KindRequestCreated,
	"response": notification.KindRequestResponse,
	"cancel":   notification.KindCancellation,
}

// parseKinds accepts short aliases or the stored setting names.
func parseKinds(csv string) ([]notification.Kind, error) {
	var out []notification.Kind
	seen := map[notification.Kind]bool{}
	for _, s := range splitCSV(csv) {
		k, ok := kindAliases[strings.ToLower(s)]
		if !ok {
			switch kk := notification.Kind(strings.ToUpper(s)); kk {
			case notification.KindRequestCreated, notification.KindRequestResponse, notification.KindCancellation:
				k = kk
			default:
				return nil, fmt.Errorf("unknown notification kind %q", s)
			}
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
