package transfer

import "fmt"

// Result is the outcome of one successful chunk attempt.
type Result struct {
	// NewOffset is the number of bytes confirmed written remotely after
	// this call. The caller carries it into the next request.
	NewOffset int64

	// BytesSent is the number of bytes moved by this call. It reflects the
	// reconciled range, which may differ from the range the caller's offset
	// implied.
	BytesSent int64

	// FileSize is the total size of the local source file.
	FileSize int64

	// Percent is the completion percentage after this call, 0..100.
	Percent float64

	// Complete reports whether the file was finalized under its final
	// remote name by this call.
	Complete bool
}

// percent computes a completion percentage clamped to 100.
func percent(offset, size int64) float64 {
	if size <= 0 {
		return 0
	}
	p := float64(offset) / float64(size) * 100.0
	if p > 100 {
		p = 100
	}
	return p
}

// FileState is the caller-owned progress record for one file. The engine
// never stores it; all progress crosses the call boundary by value.
type FileState struct {
	// File is the relative path of the local source.
	File string

	// Size is the total file size, queried once and cached by the caller.
	Size int64

	// Offset is the count of bytes already confirmed written remotely.
	// Invariant: 0 <= Offset <= Size, and Offset == Size exactly when
	// Complete is set.
	Offset int64

	// Complete records that the file was finalized remotely.
	Complete bool
}

// Apply folds a chunk result into the state.
func (s *FileState) Apply(r *Result) {
	s.Offset = r.NewOffset
	s.Complete = r.Complete
	if r.FileSize > 0 {
		s.Size = r.FileSize
	}
}

// String renders the state for logs and progress output.
func (s *FileState) String() string {
	return fmt.Sprintf("%s: %d/%d bytes (%.1f%%)", s.File, s.Offset, s.Size, percent(s.Offset, s.Size))
}
