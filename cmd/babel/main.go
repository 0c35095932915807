// Command babel keeps linked per-context replicas of a content tree in step.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/babel/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "babel:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
