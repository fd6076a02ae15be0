// Command portal-cruncher consumes portal session updates from Kafka and
// records them in the Redis session store.
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
	if err := cli.ExecuteArgs(append([]string{"cruncher"}, os.Args[1:]...)); err != nil {
		os.Exit(1)
	}
}
