package cli

import (
	"github.com/spf13/cobra"
)

// NewCredentialsCommand creates the credentials command group.
func NewCredentialsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the stored identity",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <user-id> <secret>",
		Short: "Store an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.mgr.SetCredentials(cmd.Context(), args[0], args[1]); err != nil {
				return WrapExitError(ExitCommandError, "failed to store credentials", err)
			}
			return e.out.Success(map[string]string{"user_id": args[0]})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the stored identity and the cached match list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.mgr.SetCredentials(cmd.Context(), "", ""); err != nil {
				return WrapExitError(ExitCommandError, "failed to delete credentials", err)
			}
			return e.out.Success("credentials cleared")
		},
	})

	return cmd
}

// NewTurnCommand creates the turn command group.
func NewTurnCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Manage the pending multiplayer turn",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard the pending turn without uploading it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			// The turn is only restored with an identity; clear the store
			// directly otherwise.
			if e.mgr.HasUserID() {
				e.mgr.Turns().Reset()
			} else if err := e.store.SavePendingTurn(cmd.Context(), nil); err != nil {
				return WrapExitError(ExitCommandError, "failed to clear turn", err)
			}
			return e.out.Success("pending turn cleared")
		},
	})

	return cmd
}
