package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ftpush/retry"
	"github.com/opd-ai/ftpush/transport"
)

// Session drives one chunk of one file through the upload state machine:
// validate, reconcile the resume offset against remote truth, read the
// planned range locally, write it through the retry controller, and
// finalize atomically when the range reaches the end of the file.
//
// A Session owns its transport connection for the duration of one Run and
// nothing across calls; every call is self-contained and recovers
// correctness even if every prior connection was lost.
type Session struct {
	transport transport.Transport
	retrier   *retry.Controller
	localRoot string
}

// NewSession creates a session over an unconnected transport. localRoot is
// the directory relative file paths resolve against.
func NewSession(t transport.Transport, retrier *retry.Controller, localRoot string) *Session {
	return &Session{
		transport: t,
		retrier:   retrier,
		localRoot: localRoot,
	}
}

// Run executes one chunk call. On success the result carries the new
// confirmed offset for the caller's next request; on failure the error is
// always a *Error with the file identity and the offset at failure time,
// and the remote partial file is preserved for a later resume.
func (s *Session) Run(req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, newError(KindInvalidRequest, req.File, req.Offset, err)
	}

	size, err := s.statLocal(req)
	if err != nil {
		return nil, err
	}
	if req.Offset > size {
		return nil, newError(KindInvalidRequest, req.File, req.Offset,
			fmt.Errorf("%w: offset %d, size %d", ErrOffsetBeyondSize, req.Offset, size))
	}

	logrus.WithFields(logrus.Fields{
		"function": "Run",
		"file":     req.File,
		"protocol": req.Protocol,
		"host":     req.Host,
		"offset":   req.Offset,
		"size":     size,
	}).Debug("Starting chunk call")

	if err := s.retrier.DoConnect("connect", s.transport.Connect); err != nil {
		return nil, newError(classifyRemote(err), req.File, req.Offset, err)
	}
	defer func() {
		if closeErr := s.transport.Close(); closeErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Run",
				"file":     req.File,
				"error":    closeErr.Error(),
			}).Warn("Failed to close transport")
		}
	}()

	if req.RemoteDir != "" {
		if err := s.retrier.Do("ensure_dir", func() error {
			return s.transport.EnsureDir(req.RemoteDir)
		}); err != nil {
			return nil, newError(classifyRemote(err), req.File, req.Offset, err)
		}
	}

	offset, err := ReconcileOffset(s.transport, req.PartPath(), req.Offset, size)
	if err != nil {
		return nil, newError(KindTransientTransport, req.File, req.Offset, err)
	}

	plan, err := PlanChunk(size, req.ChunkSize, offset)
	if err != nil {
		return nil, newError(KindInvalidRequest, req.File, offset, err)
	}

	if plan.Length > 0 {
		data, err := s.readLocal(req, plan)
		if err != nil {
			return nil, err
		}

		mode := transport.WriteModeAppend
		if plan.Offset == 0 {
			mode = transport.WriteModeCreate
		}
		if err := s.retrier.Do("write_chunk", func() error {
			return s.transport.WriteChunk(req.PartPath(), data, mode, plan.Offset)
		}); err != nil {
			return nil, newError(classifyRemote(err), req.File, plan.Offset, err)
		}
	}

	newOffset := plan.End()
	if !plan.Final {
		logrus.WithFields(logrus.Fields{
			"function":   "Run",
			"file":       req.File,
			"new_offset": newOffset,
			"sent":       plan.Length,
			"size":       size,
		}).Info("Intermediate chunk written")

		return &Result{
			NewOffset: newOffset,
			BytesSent: plan.Length,
			FileSize:  size,
			Percent:   percent(newOffset, size),
		}, nil
	}

	if err := s.finalize(req, size); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Run",
		"file":     req.File,
		"size":     size,
	}).Info("Transfer finalized")

	return &Result{
		NewOffset: size,
		BytesSent: plan.Length,
		FileSize:  size,
		Percent:   100,
		Complete:  true,
	}, nil
}

// statLocal validates the local source file and returns its size.
func (s *Session) statLocal(req Request) (int64, error) {
	path := s.localPath(req)
	fi, err := os.Stat(path)
	if err != nil {
		return 0, newError(KindLocalSource, req.File, req.Offset, fmt.Errorf("stat %s: %w", path, err))
	}
	if fi.IsDir() {
		return 0, newError(KindLocalSource, req.File, req.Offset, fmt.Errorf("%s is a directory", path))
	}
	if fi.Size() == 0 {
		return 0, newError(KindLocalSource, req.File, req.Offset, fmt.Errorf("%s: %w", path, ErrEmptyFile))
	}
	return fi.Size(), nil
}

// readLocal reads exactly the planned byte range from the source file. A
// short read or seek failure is fatal for this attempt, never padded.
func (s *Session) readLocal(req Request, plan ChunkPlan) ([]byte, error) {
	path := s.localPath(req)
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindLocalSource, req.File, plan.Offset, fmt.Errorf("open %s: %w", path, err))
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLocal",
				"file":     req.File,
				"error":    closeErr.Error(),
			}).Warn("Failed to close local file")
		}
	}()

	data := make([]byte, plan.Length)
	n, err := f.ReadAt(data, plan.Offset)
	if err != nil && err != io.EOF {
		return nil, newError(KindLocalSource, req.File, plan.Offset, fmt.Errorf("read %s at %d: %w", path, plan.Offset, err))
	}
	if int64(n) != plan.Length {
		return nil, newError(KindLocalSource, req.File, plan.Offset,
			fmt.Errorf("short read of %s: got %d of %d bytes at offset %d", path, n, plan.Length, plan.Offset))
	}
	return data, nil
}

// finalize promotes the partial file to the final name: pre-delete any
// stale final file, rename partial onto the final path, then verify the
// final size. A corrupt result is deleted rather than left under the final
// name; the partial survives every failure short of a successful rename.
func (s *Session) finalize(req Request, size int64) error {
	finalPath := req.FinalPath()
	partPath := req.PartPath()

	if err := s.retrier.Do("delete_stale_final", func() error {
		return s.transport.Delete(finalPath)
	}); err != nil {
		return newError(KindFinalization, req.File, size, err)
	}

	if err := s.retrier.Do("rename", func() error {
		return s.transport.Rename(partPath, finalPath)
	}); err != nil {
		return newError(KindFinalization, req.File, size, err)
	}

	finalSize, exists, err := s.transport.RemoteSize(finalPath)
	if err != nil {
		return newError(KindTransientTransport, req.File, size, fmt.Errorf("verify %s: %w", finalPath, err))
	}
	if !exists || finalSize != size {
		if delErr := s.transport.Delete(finalPath); delErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "finalize",
				"file":     req.File,
				"path":     finalPath,
				"error":    delErr.Error(),
			}).Error("Failed to remove corrupt final file")
		}
		return newError(KindIntegrity, req.File, size,
			fmt.Errorf("final size %d (exists %t), expected %d", finalSize, exists, size))
	}

	return nil
}

// localPath resolves the request's relative file against the local root.
func (s *Session) localPath(req Request) string {
	return filepath.Join(s.localRoot, filepath.FromSlash(req.File))
}
