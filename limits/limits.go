// Package limits provides centralized size limits for chunked uploads.
// This ensures consistent validation across different components of the engine.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MinChunkSize is the smallest chunk a caller may request (64 KiB).
	// Smaller chunks make per-call protocol overhead dominate the transfer.
	MinChunkSize = 64 * 1024

	// MaxChunkSize is the largest chunk a caller may request (64 MiB).
	// The whole chunk is buffered in memory for one engine call, so this
	// bound prevents memory exhaustion from a hostile or broken caller.
	MaxChunkSize = 64 * 1024 * 1024

	// DefaultChunkSize is used when a request leaves the chunk size unset (8 MiB).
	DefaultChunkSize = 8 * 1024 * 1024

	// SubWriteSize is the size of each SFTP sub-write inside one chunk (1 MiB).
	// Kept well under the outer chunk size so a chunk decomposes into
	// several independently verifiable sub-writes.
	SubWriteSize = 1024 * 1024

	// MaxRelativePathLength caps the relative file path carried in a request.
	// The value matches common filesystem PATH_MAX conventions.
	MaxRelativePathLength = 4096

	// MaxRetries is the largest retry budget a request may carry.
	MaxRetries = 20

	// DefaultMaxRetries is the retry budget used when a request leaves it unset.
	DefaultMaxRetries = 5
)

var (
	// ErrChunkSizeZero indicates a non-positive chunk size was provided
	ErrChunkSizeZero = errors.New("chunk size must be positive")

	// ErrChunkSizeOutOfRange indicates a chunk size outside the allowed bounds
	ErrChunkSizeOutOfRange = errors.New("chunk size out of range")

	// ErrPathTooLong indicates a relative path exceeds the maximum length
	ErrPathTooLong = errors.New("relative path too long")

	// ErrRetryBudgetOutOfRange indicates a retry budget above the allowed cap
	ErrRetryBudgetOutOfRange = errors.New("retry budget out of range")
)

// ValidateChunkSize validates a requested chunk size against the allowed bounds.
// Returns an error with context including the actual and permitted sizes.
func ValidateChunkSize(size int64) error {
	if size <= 0 {
		return ErrChunkSizeZero
	}
	if size < MinChunkSize || size > MaxChunkSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrChunkSizeOutOfRange, size, MinChunkSize, MaxChunkSize)
	}
	return nil
}

// ValidateRelativePath validates the length of a relative file path.
func ValidateRelativePath(path string) error {
	if len(path) > MaxRelativePathLength {
		return fmt.Errorf("%w: %d exceeds limit %d", ErrPathTooLong, len(path), MaxRelativePathLength)
	}
	return nil
}

// ValidateRetryBudget validates a retry budget against the allowed cap.
func ValidateRetryBudget(n int) error {
	if n < 0 || n > MaxRetries {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrRetryBudgetOutOfRange, n, MaxRetries)
	}
	return nil
}
