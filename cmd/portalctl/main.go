// Command portalctl runs the portal, the cruncher and the operator commands.
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
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
