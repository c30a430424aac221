package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/ftpush/limits"
)

// Common request validation errors
var (
	// ErrMissingField indicates a required request field was left empty
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidPort indicates a port outside 1..65535
	ErrInvalidPort = errors.New("invalid port")

	// ErrNegativeOffset indicates a negative resume offset
	ErrNegativeOffset = errors.New("offset must not be negative")
)

// Request describes one chunk's worth of work. It is immutable for the
// duration of one engine call; all progress state lives with the caller.
type Request struct {
	// Protocol selects the transport backend: "ftp" or "sftp".
	Protocol string

	// Host and Port identify the remote server.
	Host string
	Port int

	// User is the login name.
	User string

	// Credential is a password, inline private-key material, or a path to a
	// private-key file.
	Credential string

	// RemoteDir is the remote base directory the relative file path is
	// joined onto.
	RemoteDir string

	// File is the file's path relative to the local root and to RemoteDir,
	// with either separator style accepted.
	File string

	// Offset is the caller's belief of how many bytes are already confirmed
	// remotely. The reconciler corrects it against remote truth.
	Offset int64

	// ChunkSize bounds the bytes moved in this call. Zero selects
	// limits.DefaultChunkSize.
	ChunkSize int64

	// MaxRetries is the per-operation attempt budget. Zero selects
	// limits.DefaultMaxRetries.
	MaxRetries int

	// ConnectTimeout bounds connection establishment; zero selects the
	// transport default.
	ConnectTimeout time.Duration

	// OperationTimeout bounds each I/O operation on the established
	// session; zero selects the transport default. A timeout is a
	// retryable failure.
	OperationTimeout time.Duration
}

// Validate checks the request and fills defaulted fields in place. The
// returned error wraps the specific validation failure; it is always a
// fatal InvalidRequest condition, never retried.
func (r *Request) Validate() error {
	for _, f := range []struct {
		name  string
		empty bool
	}{
		{"protocol", r.Protocol == ""},
		{"host", r.Host == ""},
		{"user", r.User == ""},
		{"credential", r.Credential == ""},
		{"file", r.File == ""},
	} {
		if f.empty {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}

	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, r.Port)
	}
	if r.Offset < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeOffset, r.Offset)
	}

	if err := limits.ValidateRelativePath(r.File); err != nil {
		return err
	}
	cleaned, err := SafeRelativePath(r.File)
	if err != nil {
		return fmt.Errorf("file %q: %w", r.File, err)
	}
	r.File = cleaned

	if r.ChunkSize == 0 {
		r.ChunkSize = limits.DefaultChunkSize
	}
	if err := limits.ValidateChunkSize(r.ChunkSize); err != nil {
		return err
	}

	if r.MaxRetries == 0 {
		r.MaxRetries = limits.DefaultMaxRetries
	}
	if err := limits.ValidateRetryBudget(r.MaxRetries); err != nil {
		return err
	}

	return nil
}

// FinalPath returns the remote destination path for this request.
func (r *Request) FinalPath() string {
	return RemoteFinalPath(r.RemoteDir, r.File)
}

// PartPath returns the remote temporary path for this request.
func (r *Request) PartPath() string {
	return RemotePartPath(r.FinalPath())
}
