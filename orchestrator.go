package ftpush

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ftpush/retry"
	"github.com/opd-ai/ftpush/transfer"
)

// speedSmoothing is the exponential moving average weight of the newest
// throughput sample.
const speedSmoothing = 0.3

// Target describes the server and remote directory a batch uploads to.
// The per-file fields of a transfer.Request are filled per chunk by the
// orchestrator.
type Target struct {
	Protocol         string
	Host             string
	Port             int
	User             string
	Credential       string
	RemoteDir        string
	ChunkSize        int64
	MaxRetries       int
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// Progress is delivered to the progress callback after every confirmed
// chunk of a file.
type Progress struct {
	// TransferID identifies one file's upload across its chunks.
	TransferID string

	// State is the file's progress after the chunk.
	State transfer.FileState

	// Speed is the smoothed throughput in bytes per second. Zero until the
	// first timed sample.
	Speed float64
}

// ProgressFunc receives progress updates. It is called synchronously
// between chunks and must not block for long.
type ProgressFunc func(Progress)

// ChunkSender is the slice of the engine the orchestrator drives.
type ChunkSender interface {
	TransferChunk(req transfer.Request) (*transfer.Result, error)
}

// Orchestrator drives whole files and batches through the single-chunk
// engine, sequentially, resuming each file from whatever the remote
// already holds.
type Orchestrator struct {
	engine     ChunkSender
	target     Target
	onProgress ProgressFunc
	clock      retry.Clock
}

// NewOrchestrator creates a driver for the given target. onProgress may be
// nil.
func NewOrchestrator(engine ChunkSender, target Target, onProgress ProgressFunc) *Orchestrator {
	return &Orchestrator{
		engine:     engine,
		target:     target,
		onProgress: onProgress,
		clock:      retry.RealClock{},
	}
}

// SetClock injects a custom clock for deterministic throughput samples.
func (o *Orchestrator) SetClock(clock retry.Clock) {
	if clock == nil {
		clock = retry.RealClock{}
	}
	o.clock = clock
}

// UploadFile transfers one file chunk by chunk until it is finalized
// remotely. The returned state reflects progress at the point of return,
// including on failure, so a caller can retry the file later and resume.
func (o *Orchestrator) UploadFile(file string) (transfer.FileState, error) {
	id := uuid.New().String()
	state := transfer.FileState{File: file}
	var speed float64

	logrus.WithFields(logrus.Fields{
		"function":    "UploadFile",
		"transfer_id": id,
		"file":        file,
		"host":        o.target.Host,
	}).Info("Starting file upload")

	for !state.Complete {
		start := o.clock.Now()
		res, err := o.engine.TransferChunk(o.request(file, state.Offset))
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "UploadFile",
				"transfer_id": id,
				"file":        file,
				"offset":      state.Offset,
				"error":       err.Error(),
			}).Error("File upload failed")
			return state, err
		}

		speed = updateSpeed(speed, res.BytesSent, o.clock.Now().Sub(start))
		state.Apply(res)

		if o.onProgress != nil {
			o.onProgress(Progress{TransferID: id, State: state, Speed: speed})
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "UploadFile",
		"transfer_id": id,
		"file":        file,
		"size":        state.Size,
	}).Info("File upload complete")

	return state, nil
}

// UploadAll transfers the given relative paths in order, stopping at the
// first failure. It returns the state of every file it touched; on failure
// the last entry holds the partial progress of the failed file.
func (o *Orchestrator) UploadAll(files []string) ([]transfer.FileState, error) {
	states := make([]transfer.FileState, 0, len(files))
	for _, file := range files {
		state, err := o.UploadFile(file)
		states = append(states, state)
		if err != nil {
			return states, fmt.Errorf("upload %s: %w", file, err)
		}
	}
	return states, nil
}

// request builds the chunk request for one file at one offset.
func (o *Orchestrator) request(file string, offset int64) transfer.Request {
	return transfer.Request{
		Protocol:         o.target.Protocol,
		Host:             o.target.Host,
		Port:             o.target.Port,
		User:             o.target.User,
		Credential:       o.target.Credential,
		RemoteDir:        o.target.RemoteDir,
		File:             file,
		Offset:           offset,
		ChunkSize:        o.target.ChunkSize,
		MaxRetries:       o.target.MaxRetries,
		ConnectTimeout:   o.target.ConnectTimeout,
		OperationTimeout: o.target.OperationTimeout,
	}
}

// updateSpeed folds one throughput sample into the moving average.
// Untimeable samples leave the average unchanged.
func updateSpeed(prev float64, bytes int64, elapsed time.Duration) float64 {
	if bytes <= 0 || elapsed <= 0 {
		return prev
	}
	instant := float64(bytes) / elapsed.Seconds()
	if prev == 0 {
		return instant
	}
	return speedSmoothing*instant + (1-speedSmoothing)*prev
}
