package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/blocksync/internal/backend"
	"github.com/roach88/blocksync/internal/clock"
	"github.com/roach88/blocksync/internal/config"
	"github.com/roach88/blocksync/internal/loop"
	"github.com/roach88/blocksync/internal/remote"
	"github.com/roach88/blocksync/internal/store"
)

// hooks replace engine collaborators in tests.
type hooks struct {
	lookup func(string) (string, bool)
	client func(cfg *config.Config, log *logrus.Entry) remote.Client
	clock  clock.Clock
}

// engine is one running instance of the sync engine.
type engine struct {
	cfg   *config.Config
	log   *logrus.Entry
	store *store.Store
	loop  *loop.Loop
	mgr   *backend.Manager
	out   *OutputFormatter
}

// openEngine loads config, opens the settings store and builds the Manager.
// The caller owns the returned engine and must close it.
func openEngine(cmd *cobra.Command, opts *RootOptions) (*engine, error) {
	h := opts.hooks
	if h == nil {
		h = &hooks{}
	}

	cfg, err := config.Load(config.Options{
		Path:    opts.ConfigPath,
		EnvFile: opts.EnvFile,
		Lookup:  h.lookup,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	log := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	log.WithField("path", st.Path()).Debug("database ready")

	var client remote.Client
	if h.client != nil {
		client = h.client(cfg, log)
	} else {
		client = remote.NewHTTPClient(cfg.BaseURL,
			remote.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
			remote.WithLogger(log.WithField("component", "http")))
	}

	var clk clock.Clock = clock.System{}
	if h.clock != nil {
		clk = h.clock
	}

	l := loop.New(loop.WithLogger(log))
	mgr, err := backend.New(cmd.Context(), backend.Deps{
		Loop:     l,
		Client:   client,
		Settings: st,
		Clock:    clk,
		Logger:   log,
		Platform: cfg.Platform,
		OS:       cfg.OS,
		Version:  cfg.ClientVersion,
	})
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	// Configured credentials seed an empty database only.
	if cfg.UserID != "" && !mgr.HasUserID() {
		if err := mgr.SetCredentials(cmd.Context(), cfg.UserID, cfg.Secret); err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to store credentials", err)
		}
	}

	return &engine{
		cfg:   cfg,
		log:   log,
		store: st,
		loop:  l,
		mgr:   mgr,
		out:   &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()},
	}, nil
}

// await serves the loop until cond holds or the HTTP timeout has passed
// twice over.
func (e *engine) await(ctx context.Context, cond func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, 2*e.cfg.HTTPTimeout)
	defer cancel()
	if err := e.loop.RunUntil(ctx, cond); err != nil {
		return WrapExitError(ExitFailure, "timed out waiting for the service", err)
	}
	return nil
}

// close stops the loop and closes the store. Completions still queued are
// dropped; everything they would persist was persisted before the call.
func (e *engine) close() {
	e.loop.Stop()
	if err := e.store.Close(); err != nil {
		e.log.WithError(err).Error("error closing database")
	}
}

// remoteError converts a recorded remote failure into an exit error and
// reports it in the configured format.
func (e *engine) remoteError(what, message string, connectivity bool) error {
	details := map[string]any{"connectivity": connectivity}
	_ = e.out.Error(CodeRemote, fmt.Sprintf("%s failed: %s", what, message), details)
	return NewExitError(ExitFailure, fmt.Sprintf("%s failed: %s", what, message))
}

func newLogger(w io.Writer, cfg *config.Config, verbose bool) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(w)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logrus.NewEntry(logger)
}
