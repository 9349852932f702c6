package trace

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/tagheap/memutils/boundary"
	"github.com/vkngwrapper/tagheap/mm"
)

type ReplayOptions struct {
	// CheckConsistency runs the allocator's full consistency walk after every operation
	CheckConsistency bool
	// Inspect, if set, is called after the last operation and before allocations still live are
	// released
	Inspect func(allocator *mm.Allocator)
}

type Result struct {
	Name             string
	Ops              int
	PeakPayloadBytes int
	HeapSize         int
	Counters         boundary.Counters
}

// Utilization is the peak number of live payload bytes as a fraction of the final heap size
func (r Result) Utilization() float64 {
	if r.HeapSize == 0 {
		return 0
	}

	return float64(r.PeakPayloadBytes) / float64(r.HeapSize)
}

type liveRange struct {
	ptr  mm.Pointer
	size int
}

type replayer struct {
	allocator *mm.Allocator
	live      *swiss.Map[int, liveRange]
	liveBytes int
	peakBytes int
}

// Replay runs every operation in trace against allocator, in order. Every payload is filled with
// a pattern derived from its id; the pattern is checked before each reallocation and release, and
// every new allocation is checked for alignment, bounds and overlap with every live allocation.
// Allocations still live when the trace ends, or when replay stops on an error, are released.
func Replay(allocator *mm.Allocator, trace *Trace, options ReplayOptions) (Result, error) {
	r := &replayer{
		allocator: allocator,
		live:      swiss.NewMap[int, liveRange](uint32(trace.IDCount + 1)),
	}

	for index, op := range trace.Ops {
		err := r.apply(op)
		if err == nil && options.CheckConsistency {
			err = allocator.CheckConsistency()
		}
		if err != nil {
			r.releaseAll()
			return Result{}, errors.Wrapf(err, "%s: op %d (%s %d %d)", trace.Name, index, op.Type, op.ID, op.Size)
		}
	}

	result := Result{
		Name:             trace.Name,
		Ops:              len(trace.Ops),
		PeakPayloadBytes: r.peakBytes,
		HeapSize:         allocator.HeapSize(),
	}

	if options.Inspect != nil {
		options.Inspect(allocator)
	}

	r.releaseAll()
	result.Counters = allocator.Counters()

	return result, nil
}

// releaseAll returns every allocation the trace still holds to the allocator
func (r *replayer) releaseAll() {
	r.live.Iter(func(id int, block liveRange) bool {
		r.allocator.Release(block.ptr)
		return false
	})

	r.live = swiss.NewMap[int, liveRange](uint32(r.live.Count() + 1))
	r.liveBytes = 0
}

func (r *replayer) apply(op Op) error {
	switch op.Type {
	case OpAllocate:
		if block, exists := r.live.Get(op.ID); exists && block.ptr != mm.Null {
			return errors.Newf("id %d is already allocated", op.ID)
		}

		ptr, err := r.allocator.Allocate(op.Size)
		if err != nil {
			return err
		}

		return r.track(op.ID, ptr, op.Size, 0)
	case OpReallocate:
		block, exists := r.live.Get(op.ID)
		if !exists {
			block = liveRange{ptr: mm.Null}
		}

		err := r.checkPattern(op.ID, block)
		if err != nil {
			return err
		}

		r.forget(op.ID, block)
		ptr, err := r.allocator.Reallocate(block.ptr, op.Size)
		if err != nil {
			return err
		}

		preserved := min(block.size, op.Size)
		err = r.checkPattern(op.ID, liveRange{ptr: ptr, size: preserved})
		if err != nil {
			return errors.Wrap(err, "reallocation did not preserve the payload")
		}

		return r.track(op.ID, ptr, op.Size, preserved)
	case OpRelease:
		block, exists := r.live.Get(op.ID)
		if !exists {
			return errors.Newf("id %d is not allocated", op.ID)
		}

		err := r.checkPattern(op.ID, block)
		if err != nil {
			return err
		}

		r.forget(op.ID, block)
		r.allocator.Release(block.ptr)
		return nil
	}

	return errors.AssertionFailedf("unknown operation type %d", op.Type)
}

func (r *replayer) track(id int, ptr mm.Pointer, size int, alreadyFilled int) error {
	if size == 0 {
		if ptr != mm.Null {
			return errors.Newf("zero byte request for id %d returned %d instead of null", id, ptr)
		}
		r.live.Put(id, liveRange{ptr: mm.Null})
		return nil
	}

	if ptr == mm.Null {
		return errors.Newf("request for %d bytes for id %d returned null", size, id)
	}

	if int(ptr)%boundary.Alignment != 0 {
		return errors.Newf("payload for id %d at %d is not %d-byte aligned", id, ptr, boundary.Alignment)
	}

	if int(ptr)+size > r.allocator.HeapSize() {
		return errors.Newf("payload for id %d at [%d, %d) lies outside the heap of %d bytes", id, ptr, int(ptr)+size, r.allocator.HeapSize())
	}

	if r.allocator.UsableSize(ptr) < size {
		return errors.Newf("payload for id %d holds %d bytes but %d were requested", id, r.allocator.UsableSize(ptr), size)
	}

	var overlapErr error
	r.live.Iter(func(otherID int, other liveRange) bool {
		if int(ptr) < int(other.ptr)+other.size && int(other.ptr) < int(ptr)+size {
			overlapErr = errors.Newf("payload for id %d at [%d, %d) overlaps id %d at [%d, %d)",
				id, ptr, int(ptr)+size, otherID, other.ptr, int(other.ptr)+other.size)
			return true
		}
		return false
	})
	if overlapErr != nil {
		return overlapErr
	}

	payload := r.allocator.Payload(ptr)
	for i := alreadyFilled; i < size; i++ {
		payload[i] = patternByte(id, i)
	}

	r.live.Put(id, liveRange{ptr: ptr, size: size})
	r.liveBytes += size
	if r.liveBytes > r.peakBytes {
		r.peakBytes = r.liveBytes
	}

	return nil
}

func (r *replayer) forget(id int, block liveRange) {
	if r.live.Delete(id) {
		r.liveBytes -= block.size
	}
}

func (r *replayer) checkPattern(id int, block liveRange) error {
	if block.size == 0 {
		return nil
	}

	payload := r.allocator.Payload(block.ptr)
	for i := 0; i < block.size; i++ {
		if payload[i] != patternByte(id, i) {
			return errors.Newf("payload byte %d of id %d at %d was overwritten", i, id, block.ptr)
		}
	}

	return nil
}

func patternByte(id int, index int) byte {
	return byte(id*131 + index*7 + 1)
}
