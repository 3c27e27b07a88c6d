package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hygienix/backend/internal/service"
)

func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Account maintenance",
	}
	cmd.AddCommand(newPromoteCommand(rootOpts))
	cmd.AddCommand(newSetPasswordCommand(rootOpts))
	return cmd
}

func newPromoteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <phone>",
		Short: "Grant the admin role to the account with this phone",
		Long: `Grant the admin role to the account registered with the phone number.
Tokens issued before the promotion keep the customer role until they expire;
the user has to sign in again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withAuthService(cmd, func(ctx context.Context, svc *service.AuthService) error {
				user, err := svc.PromoteByPhone(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user #%d (%s) is now %s\n", user.ID, args[0], user.Role)
				return nil
			})
		},
	}
}

func newSetPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "set-password <phone>",
		Short: "Set the password of the account with this phone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withAuthService(cmd, func(ctx context.Context, svc *service.AuthService) error {
				if err := svc.SetPasswordByPhone(ctx, args[0], password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password (required)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
