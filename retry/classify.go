package retry

import (
	"context"
	"errors"
	"net/textproto"

	"github.com/opd-ai/ftpush/transport"
)

// permanentError marks an error as non-retryable regardless of its cause.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }

func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the controller will not retry it. Used for
// failures where repeating the operation cannot help, such as an integrity
// mismatch discovered after a write.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retryable classifies a failure. Authentication rejections, cancelled
// contexts, wrapped Permanent errors, and FTP permanent-negative (5xx)
// replies are fatal. Deadline expiry is a timeout and therefore transient.
// Everything else is presumed to be a transient transport condition: the
// engine validates its inputs before any remote operation runs, so errors
// surfacing here come from the network path.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, transport.ErrAuthentication) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	// FTP protocol replies: 4xx is transient by definition, 5xx permanent.
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code >= 400 && proto.Code < 500
	}

	// Everything else, lost sessions and net.Error timeouts included, is
	// presumed transient; the controller heals the session before the next
	// attempt.
	return true
}
