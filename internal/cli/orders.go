package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hygienix/backend/internal/feed"
)

type WatchOptions struct {
	*RootOptions
	Interval    time.Duration
	Once        bool
	Interactive bool
}

func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Follow and update orders through the API",
	}
	cmd.AddCommand(newWatchCommand(rootOpts))
	cmd.AddCommand(newSetStatusCommand(rootOpts))
	return cmd
}

func newWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the order feed",
		Long: `Poll the admin order list on an interval and print status counts plus any
order that appeared or changed status since the previous poll.

With --interactive, lines of the form "<order-id> <status>" read from stdin
are applied as status updates and the feed is re-polled right away.

Example:
  hygienixctl orders watch --interval 10s --token $HYGIENIX_TOKEN
  echo "42 completed" | hygienixctl orders watch --interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", feed.DefaultInterval, "poll interval")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "poll once and exit")
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "apply status updates read from stdin")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	client, err := opts.client()
	if err != nil {
		return err
	}
	poller := feed.NewPoller(client, opts.Interval, opts.logger(cmd))
	out := newSnapshotWriter(cmd.OutOrStdout(), opts.Format)

	if opts.Once {
		snap, err := poller.Poll(cmd.Context())
		if err != nil {
			return err
		}
		return out.write(snap)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		mu          sync.Mutex
		startReader sync.Once
	)
	err = poller.Run(ctx, func(snap feed.Snapshot) {
		mu.Lock()
		werr := out.write(snap)
		mu.Unlock()
		if werr != nil {
			opts.logger(cmd).Warn("failed to print snapshot", "error", werr)
		}
		if opts.Interactive {
			startReader.Do(func() {
				go applyStatusLines(ctx, cmd, client, poller, &mu)
			})
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyStatusLines reads "<order-id> <status>" lines until stdin closes. Each
// applied update triggers an immediate re-poll; bad lines and rejected
// updates are reported and skipped.
func applyStatusLines(ctx context.Context, cmd *cobra.Command, client *feed.Client, poller *feed.Poller, mu *sync.Mutex) {
	report := func(w io.Writer, format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, format, args...)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			report(cmd.ErrOrStderr(), "skip %q: want <order-id> <status>\n", scanner.Text())
			continue
		}
		orderID, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || orderID <= 0 {
			report(cmd.ErrOrStderr(), "skip %q: invalid order id\n", scanner.Text())
			continue
		}

		order, err := client.SetStatus(ctx, orderID, fields[1])
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			report(cmd.ErrOrStderr(), "order #%d: %v\n", orderID, err)
			continue
		}
		report(cmd.OutOrStdout(), "order #%d is now %s\n", order.ID, order.Status)
		poller.Refresh()
	}
}

func newSetStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <order-id> <status>",
		Short: "Move a pending order to completed or cancelled",
		Long: `Update an order's status through the API, then re-read the feed so the
printed state is what the server holds.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || orderID <= 0 {
				return fmt.Errorf("invalid order id %q", args[0])
			}
			client, err := rootOpts.client()
			if err != nil {
				return err
			}

			order, err := client.SetStatus(cmd.Context(), orderID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order #%d is now %s\n", order.ID, order.Status)

			snap, err := feed.NewPoller(client, 0, rootOpts.logger(cmd)).Poll(cmd.Context())
			if err != nil {
				return err
			}
			return newSnapshotWriter(cmd.OutOrStdout(), rootOpts.Format).write(snap)
		},
	}
}

func (o *RootOptions) client() (*feed.Client, error) {
	if o.Token == "" {
		return nil, errors.New("an admin token is required (--token or HYGIENIX_TOKEN)")
	}
	return feed.NewClient(o.API, o.Token, nil), nil
}
