// Command portal serves the Downloads and User Tool views.
//
// It accepts the flags of "portalctl serve".
package main

import (
	"os"

	"github.com/networknext/portal/internal/interfaces/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.Version, cli.GitCommit, cli.BuildDate = version, commit, buildDate
	if err := cli.ExecuteArgs(append([]string{"serve"}, os.Args[1:]...)); err != nil {
		os.Exit(1)
	}
}
