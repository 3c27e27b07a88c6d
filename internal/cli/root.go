// Package cli implements hygienixctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hygienix/backend/internal/app"
	"hygienix/backend/internal/notify"
	"hygienix/backend/internal/service"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	API     string
	Token   string
	Verbose bool
	Format  string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hygienixctl",
		Short: "Operate the Hygienix booking backend",
		Long: `hygienixctl bootstraps admins and manages accounts directly against the
database configured through the usual environment variables, and follows the
order feed through the HTTP API with an admin token.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.API, "api", envOr("HYGIENIX_API", "http://localhost:8080"), "base URL of the backend")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("HYGIENIX_TOKEN"), "admin bearer token")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewAdminCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))

	return cmd
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) withAuthService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.AuthService) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := openAuthFromEnv(ctx, o.logger(cmd))
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func openAuthFromEnv(ctx context.Context, logger *slog.Logger) (*service.AuthService, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return app.NewAuthService(cfg, db, discardNotifier{}, logger), func() { db.Close() }, nil
}

// discardNotifier drops messages; account commands never need to reach a customer.
type discardNotifier struct{}

func (discardNotifier) Dispatch(...notify.Message) {}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
