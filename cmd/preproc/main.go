// Command preproc rewrites source artifacts: conditional comment blocks
// first, then literal and regex value replacement.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/preproc/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
