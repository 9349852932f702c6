package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vkngwrapper/tagheap/mm"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Allocator flags
	backendName string
	pageSize    int
	maxHeapSize int
)

var rootCmd = &cobra.Command{
	Use:   "mmdriver",
	Short: "Replay allocation traces against the boundary-tag allocator",
	Long: `mmdriver replays allocation trace files against the boundary-tag allocator,
verifying every returned block for alignment, bounds, overlap and payload
integrity, and reports heap growth and peak utilization.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "slice", "Arena backend: slice or mmap")
	rootCmd.PersistentFlags().IntVar(&pageSize, "page-size", 0, "Heap growth granularity in bytes (0 for the platform page size)")
	rootCmd.PersistentFlags().IntVar(&maxHeapSize, "max-heap", 0, "Maximum heap size in bytes (0 for the default of 20Mb)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the logger handed to the allocator: debug records with --verbose, errors only
// otherwise
func newLogger() *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if quiet {
		out = io.Discard
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// newAllocator creates an allocator configured from the global flags
func newAllocator() (*mm.Allocator, error) {
	backend, err := mm.ParseArenaBackend(backendName)
	if err != nil {
		return nil, err
	}

	return mm.New(newLogger(), mm.CreateOptions{
		Backend:     backend,
		PageSize:    pageSize,
		MaxHeapSize: maxHeapSize,
	})
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
