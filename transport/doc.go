// Package transport defines the capability interface the upload engine
// requires from a remote file transport, together with FTP and SFTP
// implementations of it.
//
// # Overview
//
// The engine never speaks a wire protocol itself. It works against the
// Transport interface, which models the small capability set a chunked,
// resumable upload needs:
//
//   - Connect / Reconnect / IsConnected / Close for session lifecycle
//   - EnsureDir for idempotent destination-path creation
//   - WriteChunk for creating or extending the remote partial file
//   - RemoteSize for resume reconciliation and integrity verification
//   - Rename for atomic finalization
//   - Delete for idempotent cleanup
//
// Backends are selected by New, which is the only place protocol names are
// inspected:
//
//	t, err := transport.New(transport.Config{
//	    Protocol:   "sftp",
//	    Host:       "files.example.com",
//	    Port:       22,
//	    User:       "deploy",
//	    Credential: "/home/deploy/.ssh/id_ed25519",
//	})
//
// # Capability gaps
//
// Protocol quirks stay inside the adapters. The FTP backend has no native
// append for resumed uploads, so WriteChunk in append mode downloads the
// existing partial file, concatenates the new bytes locally, and re-uploads
// the result. The SFTP backend splits each chunk into fixed-size sub-writes
// and re-verifies the remote size after each one.
//
// Both backends arm a rolling per-operation I/O deadline on their
// connections, so an operation on a stalled session surfaces as a timeout
// for the retry layer instead of blocking its engine call indefinitely.
package transport
