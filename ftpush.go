// Package ftpush implements a resumable chunked upload engine for FTP and
// SFTP servers.
//
// The engine moves files in bounded chunks, one chunk per call, and keeps
// all progress state on the caller's side. Each call reconciles the
// caller's resume offset against the size of the remote partial file, so a
// transfer survives lost responses, dropped connections, and process
// restarts without corrupting or duplicating data. Completed files are
// finalized atomically by renaming a ".part" temporary onto the final
// remote name.
//
// Basic usage:
//
//	engine, err := ftpush.New(ftpush.Options{LocalRoot: "/data/outbox"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	state := transfer.FileState{File: "logs/app.log"}
//	for !state.Complete {
//		res, err := engine.TransferChunk(transfer.Request{
//			Protocol:   "sftp",
//			Host:       "files.example.com",
//			Port:       22,
//			User:       "deploy",
//			Credential: "~/.ssh/id_ed25519",
//			RemoteDir:  "incoming",
//			File:       state.File,
//			Offset:     state.Offset,
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		state.Apply(res)
//	}
//
// The Orchestrator type layers a sequential multi-file driver with
// progress reporting on top of the single-chunk engine.
package ftpush

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ftpush/retry"
	"github.com/opd-ai/ftpush/transfer"
	"github.com/opd-ai/ftpush/transport"
)

// Options configures an Engine.
type Options struct {
	// LocalRoot is the directory relative source paths resolve against.
	// Empty selects the current directory.
	LocalRoot string

	// Backoff overrides the retry backoff shape. The per-request retry
	// budget always comes from the request, not from here. Nil selects
	// retry.DefaultPolicy.
	Backoff *retry.Policy

	// Clock overrides time for backoff sleeps. Nil selects the real clock.
	Clock retry.Clock
}

// Engine is the chunked upload engine. It is stateless across calls:
// every TransferChunk opens its own connection, does its work, and closes.
// An Engine is safe for concurrent use; concurrent calls share nothing.
type Engine struct {
	opts Options
}

// New creates an engine rooted at opts.LocalRoot.
func New(opts Options) (*Engine, error) {
	if opts.LocalRoot == "" {
		opts.LocalRoot = "."
	}
	return &Engine{opts: opts}, nil
}

// TransferChunk moves the next chunk of one file and returns the confirmed
// new offset. The request's Offset is advisory; the engine reconciles it
// against the remote partial file before writing. Errors are always a
// *transfer.Error carrying the failure kind, file, and offset.
func (e *Engine) TransferChunk(req transfer.Request) (*transfer.Result, error) {
	// Validate up front so the retry budget and timeout defaults are
	// resolved before the transport and controller are built. The session
	// revalidates; Validate is idempotent.
	if err := req.Validate(); err != nil {
		return nil, &transfer.Error{Kind: transfer.KindInvalidRequest, File: req.File, Offset: req.Offset, Err: err}
	}

	t, err := transport.New(transport.Config{
		Protocol:         req.Protocol,
		Host:             req.Host,
		Port:             req.Port,
		User:             req.User,
		Credential:       req.Credential,
		ConnectTimeout:   req.ConnectTimeout,
		OperationTimeout: req.OperationTimeout,
	})
	if err != nil {
		return nil, &transfer.Error{Kind: transfer.KindInvalidRequest, File: req.File, Offset: req.Offset, Err: err}
	}

	policy := retry.DefaultPolicy()
	if e.opts.Backoff != nil {
		policy = *e.opts.Backoff
	}
	policy.MaxAttempts = req.MaxRetries

	ctl := retry.NewController(policy, t)
	if e.opts.Clock != nil {
		ctl.SetClock(e.opts.Clock)
	}

	logrus.WithFields(logrus.Fields{
		"function": "TransferChunk",
		"protocol": req.Protocol,
		"host":     req.Host,
		"file":     req.File,
		"offset":   req.Offset,
	}).Debug("Dispatching chunk to session")

	return transfer.NewSession(t, ctl, e.opts.LocalRoot).Run(req)
}
