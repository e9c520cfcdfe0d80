package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at link time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
	Go      string `json:"go"`
	Target  string `json:"target"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Version: version,
		Commit:  commit,
		Built:   date,
		Go:      runtime.Version(),
		Target:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and toolchain information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion(currentVersion())
	},
}

func runVersion(v versionInfo) error {
	if jsonOut {
		return printJSON(v)
	}
	fmt.Printf("verbsmemctl %s (%s, built %s)\n", v.Version, v.Commit, v.Built)
	fmt.Printf("  %s %s\n", v.Go, v.Target)
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
