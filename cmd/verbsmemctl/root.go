package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/verbsmem/forksafe"
	"github.com/joshuapare/verbsmem/internal/anonmap"
	"github.com/joshuapare/verbsmem/internal/config"
	"github.com/joshuapare/verbsmem/internal/logger"
	"github.com/joshuapare/verbsmem/region"
)

var (
	// Global flags
	configPath string
	verbose    bool
	quiet      bool
	jsonOut    bool
)

// numbers formats counts with thousands separators.
var numbers = message.NewPrinter(language.English)

var rootCmd = &cobra.Command{
	Use:   "verbsmemctl",
	Short: "Allocate and inspect fork-safe DMA regions",
	Long: `verbsmemctl drives the region allocator used for device-visible buffers.
It can allocate regions in builtin (anonymous mmap) or extern mode, report
the fork-safety table and print allocator metrics.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is the state shared by subcommands after config and logging are set up.
type session struct {
	cfg      config.Config
	tracker  *forksafe.Tracker
	pageSize int
}

// newSession loads config, applies environment overrides and initializes logging.
func newSession() (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if verbose {
		cfg.Log.Enabled = true
		cfg.Log.Level = "debug"
	}
	opts := logger.Options{
		Enabled: cfg.Log.Enabled,
		LogDir:  cfg.Log.Dir,
		Level:   logger.ParseLevel(cfg.Log.Level),
		JSON:    cfg.Log.JSON,
	}
	if cfg.Log.Dir == "" {
		opts.Writer = os.Stderr
	}
	if err := logger.Init(opts); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	tracker := forksafe.Default()
	if err := forksafe.InitFromEnv(); err != nil {
		return nil, err
	}
	if cfg.ForkSafe != nil {
		if err := tracker.SetEnabled(*cfg.ForkSafe); err != nil {
			return nil, fmt.Errorf("apply fork_safe: %w", err)
		}
	}

	pageSize := int(cfg.PageSize)
	if pageSize == 0 {
		pageSize = anonmap.PageSize()
	}

	return &session{
		cfg:      cfg,
		tracker:  tracker,
		pageSize: pageSize,
	}, nil
}

// allocator builds an allocator over the session's fork table. The returned
// pool is nil in builtin mode.
func (s *session) allocator(extern bool, m *region.Metrics) (*region.Allocator, *mmapPool) {
	cfg := region.Config{ForkSafety: s.tracker, Metrics: m}
	var pool *mmapPool
	if extern {
		pool = newMmapPool()
		cfg.Extern = pool.externAlloc()
	}
	return region.New(cfg), pool
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
