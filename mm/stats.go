package mm

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/tagheap/memutils"
)

// CalculateStatistics fills stats by walking every block in the heap. stats is cleared first. An
// error is returned if the walk finds a corrupted block.
func (a *Allocator) CalculateStatistics(stats *memutils.DetailedStatistics) error {
	stats.Clear()

	var err error
	a.mutex.RLocked(func() {
		if a.heap != nil {
			err = a.heap.AddDetailedStatistics(stats)
		}
	})

	return err
}

func printStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("BlockCount").Int(stats.BlockCount)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("FreeBlockCount").Int(stats.FreeBlockCount)
	json.Name("ArenaBytes").Int(stats.ArenaBytes)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("FreeBlockBytes").Int(stats.FreeBlockBytes)

	if stats.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.FreeBlockCount > 0 {
		json.Name("FreeBlockSizeMin").Int(stats.FreeBlockSizeMin)
		json.Name("FreeBlockSizeMax").Int(stats.FreeBlockSizeMax)
	}
}

// BuildStatsString returns a JSON document describing the allocator's current state. When
// detailedMap is true it also lists every block in the heap.
func (a *Allocator) BuildStatsString(detailedMap bool) string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("Flags").String(a.createFlags.String())
	if a.heap == nil {
		obj.Name("Destroyed").Bool(true)
		obj.End()
		return string(writer.Bytes())
	}

	var stats memutils.DetailedStatistics
	stats.Clear()
	statsErr := a.heap.AddDetailedStatistics(&stats)

	totalObj := obj.Name("Total").Object()
	printStatistics(&totalObj, &stats)
	totalObj.End()

	if statsErr != nil {
		obj.Name("Error").String(statsErr.Error())
	}

	counters := a.heap.Counters()
	countersObj := obj.Name("Counters").Object()
	countersObj.Name("AllocateCalls").Int(counters.AllocateCalls)
	countersObj.Name("ReleaseCalls").Int(counters.ReleaseCalls)
	countersObj.Name("FirstFitHits").Int(counters.FirstFitHits)
	countersObj.Name("FirstFitMisses").Int(counters.FirstFitMisses)
	countersObj.Name("GrowCalls").Int(counters.GrowCalls)
	countersObj.Name("GrowBytes").Int(counters.GrowBytes)
	countersObj.Name("SplitCount").Int(counters.SplitCount)
	countersObj.Name("CoalesceForward").Int(counters.CoalesceForward)
	countersObj.Name("CoalesceBackward").Int(counters.CoalesceBackward)
	countersObj.End()

	if detailedMap {
		// Walk failures are already reported in the map's own Error field
		_ = a.heap.PrintDetailedMap(obj.Name("DetailedMap"))
	}

	obj.End()
	return string(writer.Bytes())
}
