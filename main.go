package main

import (
	"fmt"
	"os"

	"github.com/speedyrails/ecs-oneoff/internal/cmd"
)

// Populated at build time via -ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %s\n", os.Args[0], err)
		os.Exit(1)
	}
}
