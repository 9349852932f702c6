package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/tagheap/internal/trace"
	"github.com/vkngwrapper/tagheap/mm"
)

var (
	mapDetailed bool
)

func init() {
	cmd := newMapCmd()
	cmd.Flags().BoolVar(&mapDetailed, "blocks", true, "Include every block in the output")
	rootCmd.AddCommand(cmd)
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map <trace>",
		Short: "Replay a trace and print the resulting heap",
		Long: `The map command replays a trace and, before releasing whatever the trace left
allocated, prints the allocator's statistics, counters and block map as JSON.

Example:
  mmdriver map traces/short1.rep
  mmdriver map traces/short1.rep --blocks=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(args)
		},
	}
	return cmd
}

func runMap(args []string) error {
	parsed, err := trace.Load(args[0])
	if err != nil {
		return err
	}

	allocator, err := newAllocator()
	if err != nil {
		return errors.Wrap(err, "failed to create allocator")
	}
	defer func() {
		_ = allocator.Destroy()
	}()

	printVerbose("Replaying trace: %s\n", args[0])

	var stats string
	_, err = trace.Replay(allocator, parsed, trace.ReplayOptions{
		Inspect: func(allocator *mm.Allocator) {
			stats = allocator.BuildStatsString(mapDetailed)
		},
	})
	if err != nil {
		return err
	}

	printInfo("%s\n", stats)
	return nil
}
