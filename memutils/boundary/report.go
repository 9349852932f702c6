package boundary

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/tagheap/memutils"
)

// VisitAllBlocks calls handleBlock for every block in memory order, with the block's header offset
// and full size. The sentinel is not visited. Iteration stops at the first error, which is returned.
// handleBlock must not allocate from or release to the heap.
func (h *Heap) VisitAllBlocks(handleBlock func(offset int, size int, free bool) error) error {
	sentinel := h.sentinelOffset()
	for block := firstBlockOffset; block < sentinel; {
		tag := h.header(block)
		if tag.Size() == 0 {
			return corrupted("zero-size block at offset %d", block)
		}

		err := handleBlock(block, tag.Size(), !tag.Used())
		if err != nil {
			return err
		}

		block += tag.Size()
	}

	return nil
}

func (h *Heap) AddStatistics(stats *memutils.Statistics) {
	stats.BlockCount += h.allocCount + h.freeCount
	stats.AllocationCount += h.allocCount
	stats.ArenaBytes += len(h.mem)
	stats.AllocationBytes += h.allocBytes
}

// AddDetailedStatistics walks every block and adds it to stats. If the walk hits a corrupted block
// the error is returned and stats holds only the blocks visited before it.
func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) error {
	stats.ArenaBytes += len(h.mem)

	return h.VisitAllBlocks(func(offset int, size int, free bool) error {
		if free {
			stats.AddFreeBlock(size)
		} else {
			stats.AddAllocation(size)
		}
		return nil
	})
}

// BlockJsonData writes the heap's summary fields into an open JSON object
func (h *Heap) BlockJsonData(json *jwriter.ObjectState) {
	json.Name("TotalBytes").Int(len(h.mem))
	json.Name("UnusedBytes").Int(len(h.mem) - h.allocBytes)
	json.Name("Allocations").Int(h.allocCount)
	json.Name("FreeBlocks").Int(h.freeCount)
	json.Name("FreeBytes").Int(h.freeBytes)
}

// PrintDetailedMap writes a JSON object describing the heap and every block in it. If the block walk
// fails, the blocks visited so far are kept, the error is written to an "Error" field, and it is
// returned.
func (h *Heap) PrintDetailedMap(writer *jwriter.Writer) error {
	obj := writer.Object()
	defer obj.End()

	obj.Name("PageSize").Int(h.arena.PageSize())
	h.BlockJsonData(&obj)
	obj.Name("FreeListHead").Int(h.freeHead)

	arrayState := obj.Name("Blocks").Array()
	err := h.VisitAllBlocks(func(offset int, size int, free bool) error {
		blockObj := arrayState.Object()
		defer blockObj.End()

		tag := h.header(offset)
		blockObj.Name("Offset").Int(offset)
		blockObj.Name("Size").Int(size)
		blockObj.Name("PrecedingUsed").Bool(tag.PrecedingUsed())
		if free {
			blockObj.Name("Type").String("FREE")
			blockObj.Name("NextFree").Int(h.nextFree(offset))
			blockObj.Name("PrevFree").Int(h.prevFree(offset))
		} else {
			blockObj.Name("Type").String("USED")
		}

		return nil
	})
	arrayState.End()

	if err != nil {
		obj.Name("Error").String(err.Error())
	}

	return err
}
