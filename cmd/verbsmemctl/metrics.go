package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/joshuapare/verbsmem/region"
)

var (
	metricsCount  int
	metricsExtern bool
)

func init() {
	rootCmd.AddCommand(newMetricsCmd())
}

func newMetricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Run an allocate/release cycle and print Prometheus metrics",
		Long: `The metrics command allocates and releases --count regions of increasing
size and prints the allocator metrics in the Prometheus text format.

Example:
  verbsmemctl metrics --count 16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			return runMetrics(s, os.Stdout, metricsCount, metricsExtern || s.cfg.Extern)
		},
	}
	cmd.Flags().IntVarP(&metricsCount, "count", "n", 8, "Number of regions")
	cmd.Flags().BoolVar(&metricsExtern, "extern", false, "Use the demo external allocator")
	return cmd
}

func runMetrics(s *session, w io.Writer, count int, extern bool) error {
	reg := prometheus.NewRegistry()
	a, _ := s.allocator(extern, region.NewMetrics(reg))

	for i := range count {
		r, err := a.Alloc((i+1)*s.pageSize/2, s.pageSize)
		if err != nil {
			return fmt.Errorf("region %d: %w", i, err)
		}
		if err := a.Free(r); err != nil {
			return fmt.Errorf("region %d: %w", i, err)
		}
	}

	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	return writeFamilies(w, mfs)
}

func writeFamilies(w io.Writer, mfs []*dto.MetricFamily) error {
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
