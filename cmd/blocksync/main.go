// Command blocksync runs the game backend synchronization engine headlessly.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/blocksync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
