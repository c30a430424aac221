package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Common errors for remote transports
var (
	// ErrNotConnected indicates an operation was attempted before Connect
	// or after the session was lost
	ErrNotConnected = errors.New("transport not connected")

	// ErrAuthentication indicates the server rejected the credential
	ErrAuthentication = errors.New("authentication rejected")

	// ErrUnknownProtocol indicates a protocol name with no backend
	ErrUnknownProtocol = errors.New("unknown protocol")

	// ErrDirectoryUnavailable indicates the destination directory could not
	// be created or verified
	ErrDirectoryUnavailable = errors.New("remote directory unavailable")
)

// WriteMode selects how WriteChunk places data into the remote partial file.
type WriteMode uint8

const (
	// WriteModeCreate truncates or creates the remote file and writes the
	// chunk at offset zero. Used for the first chunk of a transfer.
	WriteModeCreate WriteMode = iota

	// WriteModeAppend extends the existing remote file at its current end.
	// Used for every chunk after the first.
	WriteModeAppend
)

// String returns a human-readable name for the write mode.
func (m WriteMode) String() string {
	switch m {
	case WriteModeCreate:
		return "create"
	case WriteModeAppend:
		return "append"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Transport is the capability set the upload engine requires from a remote
// file transport. One Transport value owns at most one live connection; it
// is not safe for concurrent use.
type Transport interface {
	// Connect establishes the session and authenticates. Authentication
	// failures are reported wrapped in ErrAuthentication so callers can
	// distinguish them from transient connection failures.
	Connect() error

	// EnsureDir creates every segment of the given remote directory path,
	// treating already-existing segments as success. A failed intermediate
	// create is tolerated as long as the full path exists afterwards.
	EnsureDir(path string) error

	// WriteChunk writes data to the remote path. offset is the position the
	// data begins at; in WriteModeAppend it must equal the current remote
	// size of the file. In WriteModeCreate the file is created or truncated
	// and offset must be zero.
	WriteChunk(path string, data []byte, mode WriteMode, offset int64) error

	// RemoteSize returns the size of the remote file. A missing file is not
	// an error: it reports size 0 and exists false.
	RemoteSize(path string) (size int64, exists bool, err error)

	// Rename moves oldPath to newPath. It fails if the source is missing;
	// it never silently no-ops.
	Rename(oldPath, newPath string) error

	// Delete removes the remote file. Absence is not an error.
	Delete(path string) error

	// IsConnected reports whether the session is still usable. It may probe
	// the server and is allowed to be pessimistic.
	IsConnected() bool

	// Reconnect tears down any remains of the previous session and
	// establishes a fresh one.
	Reconnect() error

	// Close terminates the session. Safe to call when not connected.
	Close() error
}

// Config carries everything needed to construct and connect a backend.
type Config struct {
	// Protocol selects the backend: "ftp" or "sftp".
	Protocol string

	// Host and Port identify the server.
	Host string
	Port int

	// User is the login name.
	User string

	// Credential is either a password, inline private-key material, or a
	// path to a private-key file. Key forms apply to SFTP only; FTP always
	// treats the credential as a password.
	Credential string

	// OperationTimeout bounds each I/O operation on the established
	// session. A stalled read or write surfaces as a timeout, which the
	// retry layer treats as transient. Zero means DefaultOperationTimeout.
	OperationTimeout time.Duration

	// ConnectTimeout bounds connection establishment. Zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration
}

// DefaultConnectTimeout bounds connection establishment when the config
// does not specify a timeout.
const DefaultConnectTimeout = 15 * time.Second

// DefaultOperationTimeout bounds each I/O operation on an established
// session when the config does not specify a timeout.
const DefaultOperationTimeout = 30 * time.Second

// connectTimeout returns the effective connect timeout.
func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

// operationTimeout returns the effective per-operation I/O timeout.
func (c Config) operationTimeout() time.Duration {
	if c.OperationTimeout > 0 {
		return c.OperationTimeout
	}
	return DefaultOperationTimeout
}

// New constructs the backend for the configured protocol. The returned
// Transport is not yet connected; callers drive Connect through their retry
// policy. This is the only place in the engine that branches on a protocol
// name.
func New(cfg Config) (Transport, error) {
	proto := strings.ToLower(strings.TrimSpace(cfg.Protocol))

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"protocol": proto,
		"host":     cfg.Host,
		"port":     cfg.Port,
	}).Debug("Constructing transport backend")

	switch proto {
	case "ftp":
		return NewFTP(cfg), nil
	case "sftp":
		return NewSFTP(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, cfg.Protocol)
	}
}
