package main

import (
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/joshuapare/verbsmem/forksafe"
	"github.com/joshuapare/verbsmem/internal/anonmap"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Report page sizes, fork-safety state and effective config",
		Long: `The info command prints the system page size, the page size used for
rounding, whether fork-safety registration is enabled and which environment
variables influenced it.

Example:
  verbsmemctl info
  verbsmemctl info --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			return runInfo(s)
		},
	}
	return cmd
}

type infoReport struct {
	SystemPageSize int               `json:"system_page_size"`
	PageSize       int               `json:"page_size"`
	ForkSafe       bool              `json:"fork_safe"`
	Mode           string            `json:"mode"`
	Env            map[string]string `json:"env"`
}

func runInfo(s *session) error {
	report := infoReport{
		SystemPageSize: anonmap.PageSize(),
		PageSize:       s.pageSize,
		ForkSafe:       s.tracker.Enabled(),
		Mode:           "builtin",
		Env:            map[string]string{},
	}
	if s.cfg.Extern {
		report.Mode = "extern"
	}
	for _, name := range []string{forksafe.EnvForkSafe, forksafe.EnvForkSafeIBV} {
		if v, ok := os.LookupEnv(name); ok {
			report.Env[name] = v
		}
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("System page size: %s bytes\n", numbers.Sprintf("%d", report.SystemPageSize))
	printInfo("Page size:        %s bytes\n", numbers.Sprintf("%d", report.PageSize))
	printInfo("Fork safe:        %t\n", report.ForkSafe)
	printInfo("Mode:             %s\n", report.Mode)
	for _, name := range slices.Sorted(maps.Keys(report.Env)) {
		printInfo("  %s=%s\n", name, report.Env[name])
	}
	return nil
}
