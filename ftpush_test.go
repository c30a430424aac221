package ftpush

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/ftpush/transfer"
	"github.com/opd-ai/ftpush/transport"
)

func TestNewDefaultsLocalRoot(t *testing.T) {
	engine, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, ".", engine.opts.LocalRoot)
}

func TestTransferChunkRejectsInvalidRequest(t *testing.T) {
	engine, err := New(Options{LocalRoot: t.TempDir()})
	require.NoError(t, err)

	_, err = engine.TransferChunk(transfer.Request{
		Protocol: "sftp",
		// Host, User, Credential, File missing.
	})
	te, ok := transfer.AsError(err)
	require.True(t, ok)
	assert.Equal(t, transfer.KindInvalidRequest, te.Kind)
	assert.ErrorIs(t, err, transfer.ErrMissingField)
}

func TestTransferChunkRejectsUnknownProtocol(t *testing.T) {
	engine, err := New(Options{LocalRoot: t.TempDir()})
	require.NoError(t, err)

	_, err = engine.TransferChunk(transfer.Request{
		Protocol:   "gopher",
		Host:       "files.example.com",
		Port:       70,
		User:       "deploy",
		Credential: "secret",
		File:       "data.bin",
	})
	te, ok := transfer.AsError(err)
	require.True(t, ok)
	assert.Equal(t, transfer.KindInvalidRequest, te.Kind)
	assert.ErrorIs(t, err, transport.ErrUnknownProtocol)
}

func TestUpdateSpeed(t *testing.T) {
	// First timed sample sets the average outright.
	s := updateSpeed(0, 1000, time.Second)
	assert.InDelta(t, 1000, s, 0.01)

	// Subsequent samples blend with the smoothing weight.
	s = updateSpeed(s, 3000, time.Second)
	assert.InDelta(t, 0.3*3000+0.7*1000, s, 0.01)

	// Untimeable samples never disturb the average.
	assert.Equal(t, s, updateSpeed(s, 0, time.Second))
	assert.Equal(t, s, updateSpeed(s, 1000, 0))
}

// scriptedSender fakes the engine for orchestrator tests: each file takes
// a fixed number of chunks, each moving chunkBytes, and named files can be
// scripted to fail at a given chunk.
type scriptedSender struct {
	chunksPerFile int
	chunkBytes    int64
	failFile      string
	failAtChunk   int
	failErr       error

	calls []transfer.Request
}

func (s *scriptedSender) TransferChunk(req transfer.Request) (*transfer.Result, error) {
	s.calls = append(s.calls, req)

	chunk := int(req.Offset/s.chunkBytes) + 1
	if req.File == s.failFile && chunk == s.failAtChunk {
		return nil, s.failErr
	}

	size := s.chunkBytes * int64(s.chunksPerFile)
	return &transfer.Result{
		NewOffset: req.Offset + s.chunkBytes,
		BytesSent: s.chunkBytes,
		FileSize:  size,
		Complete:  req.Offset+s.chunkBytes >= size,
	}, nil
}

func testTarget() Target {
	return Target{
		Protocol:   "sftp",
		Host:       "files.example.com",
		Port:       22,
		User:       "deploy",
		Credential: "secret",
		RemoteDir:  "incoming",
		ChunkSize:  1 << 20,
	}
}

func TestOrchestratorUploadFile(t *testing.T) {
	sender := &scriptedSender{chunksPerFile: 3, chunkBytes: 1 << 20}

	var updates []Progress
	o := NewOrchestrator(sender, testTarget(), func(p Progress) {
		updates = append(updates, p)
	})

	state, err := o.UploadFile("logs/app.log")
	require.NoError(t, err)

	assert.True(t, state.Complete)
	assert.Equal(t, int64(3<<20), state.Offset)
	require.Len(t, updates, 3)

	// Every chunk of one file shares one transfer ID and carries the
	// offsets forward.
	for i, p := range updates {
		assert.Equal(t, updates[0].TransferID, p.TransferID)
		assert.Equal(t, int64(i+1)<<20, p.State.Offset)
	}
	assert.True(t, updates[2].State.Complete)

	// Each chunk request resumed from the previous confirmed offset.
	require.Len(t, sender.calls, 3)
	for i, req := range sender.calls {
		assert.Equal(t, int64(i)<<20, req.Offset)
		assert.Equal(t, "logs/app.log", req.File)
		assert.Equal(t, "incoming", req.RemoteDir)
	}
}

func TestOrchestratorUploadAllStopsAtFirstFailure(t *testing.T) {
	failure := errors.New("server went away")
	sender := &scriptedSender{
		chunksPerFile: 2,
		chunkBytes:    1 << 20,
		failFile:      "b.bin",
		failAtChunk:   2,
		failErr:       failure,
	}
	o := NewOrchestrator(sender, testTarget(), nil)

	states, err := o.UploadAll([]string{"a.bin", "b.bin", "c.bin"})
	require.ErrorIs(t, err, failure)

	// a.bin finished, b.bin holds partial progress, c.bin never started.
	require.Len(t, states, 2)
	assert.True(t, states[0].Complete)
	assert.False(t, states[1].Complete)
	assert.Equal(t, int64(1<<20), states[1].Offset, "resumable progress preserved")
}

func TestOrchestratorDistinctTransferIDsPerFile(t *testing.T) {
	sender := &scriptedSender{chunksPerFile: 1, chunkBytes: 1 << 20}

	ids := make(map[string]bool)
	o := NewOrchestrator(sender, testTarget(), func(p Progress) {
		ids[p.TransferID] = true
	})

	_, err := o.UploadAll([]string{"a.bin", "b.bin", "c.bin"})
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}
