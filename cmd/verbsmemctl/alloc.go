package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/verbsmem/internal/config"
	"github.com/joshuapare/verbsmem/region"
)

var (
	allocSize     string
	allocPageSize string
	allocCount    int
	allocExtern   bool
)

func init() {
	rootCmd.AddCommand(newAllocCmd())
}

func newAllocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alloc",
		Short: "Allocate regions, touch every page, then release them",
		Long: `The alloc command allocates --count regions of --size bytes, writes one
byte per page, prints the regions and the fork-safety table, releases them
and checks that nothing is left registered.

Example:
  verbsmemctl alloc --size 64KiB --count 4
  verbsmemctl alloc --size 1 --page-size 2MiB --extern --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			opts := allocOptions{
				size:   allocSize,
				page:   allocPageSize,
				count:  allocCount,
				extern: allocExtern || s.cfg.Extern,
			}
			return runAlloc(s, opts)
		},
	}
	cmd.Flags().StringVarP(&allocSize, "size", "s", "4KiB", "Requested size per region")
	cmd.Flags().StringVarP(&allocPageSize, "page-size", "p", "", "Rounding granularity (default: config or system page size)")
	cmd.Flags().IntVarP(&allocCount, "count", "n", 1, "Number of regions")
	cmd.Flags().BoolVar(&allocExtern, "extern", false, "Use the demo external allocator")
	return cmd
}

type allocOptions struct {
	size   string
	page   string
	count  int
	extern bool
}

type regionReport struct {
	Index int    `json:"index"`
	Mode  string `json:"mode"`
	Addr  string `json:"addr"`
	Len   int    `json:"len"`
}

type allocReport struct {
	Mode           string         `json:"mode"`
	Requested      int            `json:"requested"`
	PageSize       int            `json:"page_size"`
	ForkSafe       bool           `json:"fork_safe"`
	Regions        []regionReport `json:"regions"`
	LiveBytes      int64          `json:"live_bytes"`
	ForkSpans      int            `json:"fork_spans"`
	ForkSpansAfter int            `json:"fork_spans_after"`
}

func runAlloc(s *session, opts allocOptions) error {
	size, err := config.ParseSize(opts.size)
	if err != nil {
		return err
	}
	pageSize := s.pageSize
	if opts.page != "" {
		ps, err := config.ParseSize(opts.page)
		if err != nil {
			return err
		}
		pageSize = int(ps)
	}
	if opts.count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", opts.count)
	}

	a, pool := s.allocator(opts.extern, nil)
	printVerbose("Allocating %d region(s) of %s in %s mode\n", opts.count, size, a.Mode())

	report := allocReport{
		Mode:      a.Mode().String(),
		Requested: int(size),
		PageSize:  pageSize,
		ForkSafe:  s.tracker.Enabled(),
	}

	regions := make([]*region.Region, 0, opts.count)
	release := func() error {
		var errs []error
		for _, r := range regions {
			if err := a.Free(r); err != nil {
				errs = append(errs, err)
			}
		}
		regions = regions[:0]
		return errors.Join(errs...)
	}

	for i := range opts.count {
		r, err := a.Alloc(int(size), pageSize)
		if err != nil {
			return errors.Join(fmt.Errorf("region %d: %w", i, err), release())
		}
		regions = append(regions, r)
		touch(r.Bytes(), pageSize)
		report.Regions = append(report.Regions, regionReport{
			Index: i,
			Mode:  r.Mode().String(),
			Addr:  fmt.Sprintf("%p", r.Addr()),
			Len:   r.Len(),
		})
	}

	report.LiveBytes = a.Stats().LiveBytes
	report.ForkSpans = s.tracker.Len()

	if err := release(); err != nil {
		return err
	}
	report.ForkSpansAfter = s.tracker.Len()

	if report.ForkSpansAfter != 0 {
		return fmt.Errorf("fork-safety table not empty after release: %d span(s)", report.ForkSpansAfter)
	}
	if pool != nil && pool.outstanding() != 0 {
		return fmt.Errorf("external allocator still holds %d mapping(s)", pool.outstanding())
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("Mode:       %s\n", report.Mode)
	printInfo("Requested:  %s bytes\n", numbers.Sprintf("%d", report.Requested))
	printInfo("Page size:  %s bytes\n", numbers.Sprintf("%d", report.PageSize))
	printInfo("Fork safe:  %t\n", report.ForkSafe)
	printInfo("\nRegions:\n")
	for _, rr := range report.Regions {
		printInfo("  #%-3d %-8s %-18s %s bytes\n", rr.Index, rr.Mode, rr.Addr, numbers.Sprintf("%d", rr.Len))
	}
	printInfo("\nLive bytes: %s\n", numbers.Sprintf("%d", report.LiveBytes))
	printInfo("Fork spans: %d while live, %d after release\n", report.ForkSpans, report.ForkSpansAfter)
	return nil
}

// touch writes one byte per page so every page is faulted in.
func touch(b []byte, pageSize int) {
	for off := 0; off < len(b); off += pageSize {
		b[off] = 1
	}
	if len(b) > 0 {
		b[len(b)-1] = 1
	}
}
