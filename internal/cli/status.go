package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/blocksync/internal/backend"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted engine state",
		Long: `Show the engine state restored from the settings database: identity,
queued scores and the pending turn. No request is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			return e.out.Success(statusView{Status: e.mgr.Status(), Database: e.store.Path()})
		},
	}
}

// statusView is the status command output.
type statusView struct {
	backend.Status
	Database string `json:"database"`
}

// RenderText implements textRenderer.
func (v statusView) RenderText(w io.Writer) {
	user := v.UserID
	if user == "" {
		user = "(none)"
	}
	fmt.Fprintf(w, "user: %s\n", user)
	fmt.Fprintf(w, "authenticated: %t\n", v.Authenticated)
	fmt.Fprintf(w, "queued scores: %d\n", v.QueuedScores)
	fmt.Fprintf(w, "sending score: %t\n", v.SendingScore)
	fmt.Fprintf(w, "turn pending: %t\n", v.TurnPending)
	fmt.Fprintf(w, "matches: %d\n", v.Matches)
	if v.LastRefreshError != "" {
		fmt.Fprintf(w, "last refresh error: %s\n", v.LastRefreshError)
	}
}
