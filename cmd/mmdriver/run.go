package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/tagheap/internal/trace"
)

var (
	runCheck bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().BoolVar(&runCheck, "check", false, "Run the full heap consistency check after every operation")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <trace>...",
		Short: "Replay traces and report utilization",
		Long: `The run command replays each trace against a fresh allocator and reports
the peak live payload, the final heap size and their ratio.

Example:
  mmdriver run traces/short1.rep
  mmdriver run traces/*.rep --check
  mmdriver run traces/realloc.rep --backend mmap --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
	return cmd
}

type traceReport struct {
	Trace            string  `json:"trace"`
	Ops              int     `json:"ops"`
	PeakPayloadBytes int     `json:"peakPayloadBytes"`
	HeapSize         int     `json:"heapSize"`
	Utilization      float64 `json:"utilization"`
	GrowCalls        int     `json:"growCalls"`
	SplitCount       int     `json:"splitCount"`
	CoalesceForward  int     `json:"coalesceForward"`
	CoalesceBackward int     `json:"coalesceBackward"`
}

func runRun(args []string) error {
	var reports []traceReport

	for _, path := range args {
		printVerbose("Replaying trace: %s\n", path)

		report, err := replayFile(path)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}

	if jsonOut {
		return printJSON(reports)
	}

	printInfo("%-20s %8s %12s %12s %8s\n", "trace", "ops", "peak", "heap", "util")
	var utilization float64
	for _, report := range reports {
		printInfo("%-20s %8d %12d %12d %7.1f%%\n",
			report.Trace, report.Ops, report.PeakPayloadBytes, report.HeapSize, report.Utilization*100)
		utilization += report.Utilization
	}
	printInfo("%-20s %8s %12s %12s %7.1f%%\n", "average", "", "", "", utilization*100/float64(len(reports)))

	return nil
}

func replayFile(path string) (traceReport, error) {
	parsed, err := trace.Load(path)
	if err != nil {
		return traceReport{}, err
	}

	allocator, err := newAllocator()
	if err != nil {
		return traceReport{}, errors.Wrap(err, "failed to create allocator")
	}

	result, err := trace.Replay(allocator, parsed, trace.ReplayOptions{CheckConsistency: runCheck})
	destroyErr := allocator.Destroy()
	if err != nil {
		return traceReport{}, err
	}
	if destroyErr != nil {
		return traceReport{}, destroyErr
	}

	return traceReport{
		Trace:            result.Name,
		Ops:              result.Ops,
		PeakPayloadBytes: result.PeakPayloadBytes,
		HeapSize:         result.HeapSize,
		Utilization:      result.Utilization(),
		GrowCalls:        result.Counters.GrowCalls,
		SplitCount:       result.Counters.SplitCount,
		CoalesceForward:  result.Counters.CoalesceForward,
		CoalesceBackward: result.Counters.CoalesceBackward,
	}, nil
}
