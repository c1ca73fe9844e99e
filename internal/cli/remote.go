package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/blocksync/internal/remote"
)

// ScoresOptions holds flags for the scores command.
type ScoresOptions struct {
	*RootOptions
	Best bool
}

// NewScoresCommand creates the scores command.
func NewScoresCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScoresOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scores <mode>",
		Short: "Show a scoreboard",
		Long: `Fetch and show the scoreboard of a game mode. Latest scores are shown
unless --best is given.

Example:
  blocksync scores marathon
  blocksync scores sprint40 --best`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, opts.RootOptions)
			if err != nil {
				return err
			}
			defer e.close()

			board := e.mgr.Scoreboards().Get(args[0], !opts.Best)
			if board == nil {
				_ = e.out.Error(CodeUnknown, fmt.Sprintf("unknown game mode %q", args[0]), nil)
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown game mode %q", args[0]))
			}

			board.FetchForced()
			if err := e.await(cmd.Context(), func() bool { return !board.IsFetching() }); err != nil {
				return err
			}
			if board.HasError() {
				return e.remoteError("scoreboard", board.LastError(), board.IsLastErrorConnectivity())
			}
			return e.out.Success(scoreboardView{
				Mode:   board.GameMode(),
				Latest: board.IsLatest(),
				Rows:   board.Scoreboard(),
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Best, "best", false, "show best instead of latest scores")

	return cmd
}

type scoreboardView struct {
	Mode   string                  `json:"mode"`
	Latest bool                    `json:"latest"`
	Rows   []remote.ScoreListEntry `json:"rows"`
}

// RenderText implements textRenderer.
func (v scoreboardView) RenderText(w io.Writer) {
	kind := "best"
	if v.Latest {
		kind = "latest"
	}
	fmt.Fprintf(w, "%s scores (%s): %d\n", v.Mode, kind, len(v.Rows))
	for i, r := range v.Rows {
		name := r.Nickname
		if name == "" {
			name = r.UserID
		}
		fmt.Fprintf(w, "%3d. %-20s %d\n", i+1, name, r.SortValue)
	}
}

// NewMatchesCommand creates the matches command.
func NewMatchesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "matches",
		Short: "Refresh and list the multiplayer matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			if !e.mgr.HasUserID() {
				_ = e.out.Error(CodeNoSession, "no credentials stored", nil)
				return NewExitError(ExitCommandError, "no credentials stored")
			}

			matches := e.mgr.Matches()
			matches.Refresh()
			if err := e.await(cmd.Context(), func() bool { return !matches.IsRefreshing() }); err != nil {
				return err
			}
			if !matches.LastFetchSuccessful() {
				return e.remoteError("match refresh", matches.LastFetchError(), matches.IsLastErrorConnectivity())
			}
			return e.out.Success(matchesView(matches.List()))
		},
	}
}

type matchesView []*remote.MatchEntity

// RenderText implements textRenderer.
func (v matchesView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "matches: %d\n", len(v))
	for _, m := range v {
		turn := ""
		if m.MyTurn {
			turn = " (your turn)"
		}
		opponent := m.OpponentNick
		if opponent == "" {
			opponent = m.OpponentID
		}
		fmt.Fprintf(w, "  %s %-10s %s%s\n", m.UUID, m.MatchState, opponent, turn)
	}
}

// NewServersCommand creates the servers command.
func NewServersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List the multiplayer servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			servers := e.mgr.Servers()
			servers.Addresses()
			if err := e.await(cmd.Context(), func() bool { return !servers.IsFetching() }); err != nil {
				return err
			}
			return e.out.Success(serversView(servers.Addresses()))
		},
	}
}

type serversView []remote.ServerAddress

// RenderText implements textRenderer.
func (v serversView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "servers: %d\n", len(v))
	for _, s := range v {
		fmt.Fprintf(w, "  %s %s\n", s.Name, s.Address)
	}
}
