// Command rnabatch runs memory-gated, checkpointed feature extraction
// over a list of RNA targets.
package main

import (
	"os"

	"github.com/seqlab/rnabatch/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cmd := cli.NewRootCmd(version)
	if err := cmd.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
