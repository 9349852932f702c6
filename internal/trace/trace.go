// Package trace reads allocation traces and replays them against an allocator, checking every
// result for overlap and payload damage along the way.
//
// A trace is a four-line header (suggested heap size, number of distinct ids, number of
// operations, weight) followed by one operation per line:
//
//	a <id> <bytes>   allocate
//	r <id> <bytes>   reallocate
//	f <id>           release
package trace

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

type OpType int

const (
	OpAllocate OpType = iota
	OpReallocate
	OpRelease
)

func (t OpType) String() string {
	switch t {
	case OpAllocate:
		return "a"
	case OpReallocate:
		return "r"
	case OpRelease:
		return "f"
	}

	return "?"
}

type Op struct {
	Type OpType
	ID   int
	Size int
}

type Trace struct {
	Name              string
	SuggestedHeapSize int
	IDCount           int
	Weight            int
	Ops               []Op
}

// Load reads and parses the trace file at path
func Load(path string) (*Trace, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open trace")
	}
	defer file.Close()

	return Parse(file, filepath.Base(path))
}

// Parse reads a trace from r. name is only used to label errors and results.
func Parse(r io.Reader, name string) (*Trace, error) {
	scanner := bufio.NewScanner(r)
	trace := &Trace{Name: name}

	lineNumber := 0
	nextLine := func() ([]string, bool) {
		for scanner.Scan() {
			lineNumber++
			fields := strings.Fields(scanner.Text())
			if len(fields) > 0 && !strings.HasPrefix(fields[0], "#") {
				return fields, true
			}
		}
		return nil, false
	}

	var opCount int
	header := []*int{&trace.SuggestedHeapSize, &trace.IDCount, &opCount, &trace.Weight}
	headerNames := []string{"suggested heap size", "id count", "op count", "weight"}
	for i, target := range header {
		fields, ok := nextLine()
		if !ok {
			return nil, errors.Newf("%s: trace ended before the %s header", name, headerNames[i])
		}

		value, err := parseCount(fields, 0)
		if err != nil || len(fields) != 1 {
			return nil, errors.Newf("%s:%d: malformed %s header %q", name, lineNumber, headerNames[i], strings.Join(fields, " "))
		}
		*target = value
	}

	trace.Ops = make([]Op, 0, opCount)
	for {
		fields, ok := nextLine()
		if !ok {
			break
		}

		op, err := parseOp(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", name, lineNumber)
		}

		if op.ID >= trace.IDCount {
			return nil, errors.Newf("%s:%d: id %d is outside the declared id count %d", name, lineNumber, op.ID, trace.IDCount)
		}

		trace.Ops = append(trace.Ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to read trace", name)
	}

	if len(trace.Ops) != opCount {
		return nil, errors.Newf("%s: header declares %d ops but the trace holds %d", name, opCount, len(trace.Ops))
	}

	return trace, nil
}

func parseOp(fields []string) (Op, error) {
	var op Op
	var sizeFields int

	switch fields[0] {
	case "a":
		op.Type = OpAllocate
		sizeFields = 3
	case "r":
		op.Type = OpReallocate
		sizeFields = 3
	case "f":
		op.Type = OpRelease
		sizeFields = 2
	default:
		return op, errors.Newf("unknown operation %q", fields[0])
	}

	if len(fields) != sizeFields {
		return op, errors.Newf("operation %q takes %d fields, found %d", fields[0], sizeFields, len(fields))
	}

	var err error
	op.ID, err = parseCount(fields, 1)
	if err != nil {
		return op, err
	}

	if sizeFields == 3 {
		op.Size, err = parseCount(fields, 2)
		if err != nil {
			return op, err
		}
	}

	return op, nil
}

func parseCount(fields []string, index int) (int, error) {
	value, err := strconv.Atoi(fields[index])
	if err != nil {
		return 0, errors.Wrapf(err, "field %d", index+1)
	}
	if value < 0 {
		return 0, errors.Newf("field %d is negative: %d", index+1, value)
	}

	return value, nil
}
