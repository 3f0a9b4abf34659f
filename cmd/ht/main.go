package main

import (
	"github.com/andyk/ht/internal/cmd"
)

// Version information set by the build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
