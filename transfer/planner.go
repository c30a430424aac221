package transfer

import (
	"errors"
	"fmt"
)

// Planner errors
var (
	// ErrOffsetBeyondSize indicates an offset past the end of the file
	ErrOffsetBeyondSize = errors.New("offset beyond file size")

	// ErrEmptyFile indicates a zero-byte file, which is not transferable
	// chunk-wise
	ErrEmptyFile = errors.New("empty file is not transferable")
)

// ChunkPlan is the byte range one engine call moves.
type ChunkPlan struct {
	// Offset is where the range begins.
	Offset int64

	// Length is the number of bytes to read and send. Zero only when the
	// file is already fully present remotely and finalization remains.
	Length int64

	// Final reports whether this range reaches the end of the file.
	Final bool
}

// End returns the exclusive end of the planned range.
func (p ChunkPlan) End() int64 {
	return p.Offset + p.Length
}

// PlanChunk computes the next byte range for a file of the given size. It
// has no side effects. chunkSize must be positive, size must be positive,
// and offset must satisfy 0 <= offset <= size.
func PlanChunk(size, chunkSize, offset int64) (ChunkPlan, error) {
	if size <= 0 {
		return ChunkPlan{}, ErrEmptyFile
	}
	if chunkSize <= 0 {
		return ChunkPlan{}, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if offset < 0 {
		return ChunkPlan{}, fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}
	if offset > size {
		return ChunkPlan{}, fmt.Errorf("%w: offset %d, size %d", ErrOffsetBeyondSize, offset, size)
	}

	length := chunkSize
	if offset+length > size {
		length = size - offset
	}

	return ChunkPlan{
		Offset: offset,
		Length: length,
		Final:  offset+length >= size,
	}, nil
}
