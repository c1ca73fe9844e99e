package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/blocksync/internal/backend"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Once bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync engine",
		Long: `Run the sync engine until interrupted.

Every tick refreshes the session handshake when it expired, submits queued
scores, uploads the pending turn and refreshes the match list.

With --once, a single tick runs and the command exits when all requests
it started have completed.

Example:
  blocksync run --db ./client.db
  blocksync run --once --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run one tick and exit")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	e, err := openEngine(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	params := backend.TickParams{WelcomeTTL: e.cfg.WelcomeTTL, Welcome: e.cfg.Welcome}

	if opts.Once {
		e.mgr.Tick(params)
		if err := e.await(cmd.Context(), e.idle); err != nil {
			return err
		}
		return e.out.Success(e.mgr.Status())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go e.ticker(ctx, params)

	e.log.WithField("interval", e.cfg.TickInterval).Info("engine started")
	err = e.loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	e.log.Info("engine stopped gracefully")
	return e.out.Success(e.mgr.Status())
}

// ticker posts a Tick to the loop at the configured interval, starting
// immediately.
func (e *engine) ticker(ctx context.Context, params backend.TickParams) {
	tick := func() { e.mgr.Tick(params) }

	e.loop.Post(tick)
	t := time.NewTicker(e.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !e.loop.Post(tick) {
				return
			}
		}
	}
}

// idle reports whether no request of a tick is in flight. Runs on the loop.
func (e *engine) idle() bool {
	return !e.mgr.Session().IsFetching() &&
		!e.mgr.Scores().IsSending() &&
		!e.mgr.Turns().IsUploading() &&
		!e.mgr.Matches().IsRefreshing()
}
