// Command obdsl is the client-onboarding DSL platform CLI.
package main

import (
	"fmt"
	"os"

	"github.com/halcyonfs/obdsl/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
