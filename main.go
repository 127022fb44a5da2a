package main

import (
	"os"

	"github.com/tphakala/storm-intake/cmd"
	"github.com/tphakala/storm-intake/internal/buildinfo"
)

// version and buildDate are set at build time with -ldflags "-X main.version=..."
var (
	version   = ""
	buildDate = ""
)

func main() {
	rootCmd := cmd.RootCommand(buildinfo.NewContext(version, buildDate))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
