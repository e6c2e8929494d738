package chunk

import (
	"errors"
	"fmt"
)

const (
	// MinChunkSize is the smallest chunk size accepted from configuration (256 KB).
	MinChunkSize int64 = 256 * 1024
	// DefaultChunkSize is the default size of a chunk (16 MB).
	DefaultChunkSize int64 = 16 * 1024 * 1024
)

var (
	ErrInvalidChunkSize = errors.New("invalid chunk size (must be greater than zero)")
	ErrInvalidSize      = errors.New("invalid total size (must not be negative)")
)

// Chunk is a contiguous byte range of a file.
type Chunk struct {
	Index  int   // Zero-based position in the plan
	Offset int64 // First byte, relative to the start of the file
	Length int64 // Number of bytes
}

// End returns the inclusive offset of the last byte in the chunk.
func (c Chunk) End() int64 {
	return c.Offset + c.Length - 1
}

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%d-%d]", c.Index, c.Offset, c.End())
}

// Count returns how many chunks of chunkSize are needed to cover totalSize.
func Count(totalSize, chunkSize int64) int {
	if totalSize <= 0 || chunkSize <= 0 {
		return 0
	}

	n := totalSize / chunkSize
	if totalSize%chunkSize > 0 {
		n++
	}

	return int(n)
}

// Length returns the size of the chunk at index. Every chunk but the last is
// chunkSize long; indices outside the plan have length 0.
func Length(totalSize, chunkSize int64, index int) int64 {
	count := Count(totalSize, chunkSize)

	if index < 0 || index >= count {
		return 0
	}

	if index+1 < count {
		return chunkSize
	}

	if remainder := totalSize % chunkSize; remainder > 0 {
		return remainder
	}

	return chunkSize
}

// At returns the layout of a single chunk.
func At(totalSize, chunkSize int64, index int) Chunk {
	return Chunk{
		Index:  index,
		Offset: int64(index) * chunkSize,
		Length: Length(totalSize, chunkSize, index),
	}
}

// Plan partitions [0, totalSize) into ordered chunks.
func Plan(totalSize, chunkSize int64) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	if totalSize < 0 {
		return nil, ErrInvalidSize
	}

	count := Count(totalSize, chunkSize)
	chunks := make([]Chunk, 0, count)

	for i := range count {
		chunks = append(chunks, At(totalSize, chunkSize, i))
	}

	return chunks, nil
}
