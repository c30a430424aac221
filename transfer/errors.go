package transfer

import (
	"errors"
	"fmt"

	"github.com/opd-ai/ftpush/transport"
)

// Kind classifies a fatal transfer failure for the caller.
type Kind uint8

const (
	// KindInvalidRequest indicates a missing or malformed request field.
	// Never retried.
	KindInvalidRequest Kind = iota
	// KindLocalSource indicates a missing, empty, or unreadable local file,
	// including a short read of the planned range.
	KindLocalSource
	// KindAuthentication indicates the server rejected the credential.
	KindAuthentication
	// KindTransientTransport indicates a transport failure that survived the
	// whole retry budget.
	KindTransientTransport
	// KindIntegrity indicates the remote size disagreed with the expected
	// size after a write or after finalization.
	KindIntegrity
	// KindFinalization indicates the pre-delete or rename of finalization
	// failed after retries; the partial file is preserved for resume.
	KindFinalization
)

// String returns the caller-facing name of the error kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindLocalSource:
		return "local_source"
	case KindAuthentication:
		return "authentication"
	case KindTransientTransport:
		return "transient_transport"
	case KindIntegrity:
		return "integrity"
	case KindFinalization:
		return "finalization"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is the structured failure descriptor every fatal engine condition
// is reported as. It carries the file identity and the offset at the time
// of failure so the caller can decide whether to resume later.
type Error struct {
	Kind   Kind
	File   string
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer %s: file %q offset %d: %v", e.Kind, e.File, e.Offset, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a classified transfer error.
func newError(kind Kind, file string, offset int64, err error) *Error {
	return &Error{Kind: kind, File: file, Offset: offset, Err: err}
}

// classifyRemote maps a failure from the retry/transport boundary onto an
// error kind. Authentication rejections keep their own kind; everything
// else that reached this point is a transport failure that outlived its
// retry budget or was fatal on first contact.
func classifyRemote(err error) Kind {
	if errors.Is(err, transport.ErrAuthentication) {
		return KindAuthentication
	}
	return KindTransientTransport
}

// AsError extracts the structured descriptor from an engine failure.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
