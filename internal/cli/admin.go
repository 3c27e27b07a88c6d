package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hygienix/backend/internal/service"
)

func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin bootstrap",
	}
	cmd.AddCommand(newAdminInitCommand(rootOpts))
	return cmd
}

func newAdminInitCommand(rootOpts *RootOptions) *cobra.Command {
	var input service.AdminInitInput

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or promote the first admin",
		Long: `Create the first admin account, or promote the account with the given email.
Does nothing once any admin exists.

Example:
  hygienixctl admin init --email admin@hygienix.in --password 's3cret'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withAuthService(cmd, func(ctx context.Context, svc *service.AuthService) error {
				if err := svc.InitFirstAdmin(ctx, input); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin ready: %s\n", input.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&input.Email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&input.Password, "password", "", "admin password (required)")
	cmd.Flags().StringVar(&input.Phone, "phone", "", "admin phone")
	cmd.Flags().StringVar(&input.Name, "name", "Admin", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
