package memutils

import "github.com/cockroachdb/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrOutOfMemory is returned when the arena backing a heap cannot grow far enough to satisfy a request.
// The heap is left exactly as it was before the failing call.
var ErrOutOfMemory error = errors.New("out of memory")

// ErrInvalidSize is returned when a negative or otherwise unusable size is requested
var ErrInvalidSize error = errors.New("invalid size")

// ErrHeapCorrupted is wrapped by every error produced by a consistency walk
var ErrHeapCorrupted error = errors.New("heap corrupted")

// ErrUnsupported is returned when an arena backend is not available on the current platform
var ErrUnsupported error = errors.New("unsupported on this platform")
