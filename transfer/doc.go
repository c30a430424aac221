// Package transfer implements the resumable chunked-upload engine: chunk
// planning, resume reconciliation, the per-call transfer session, and the
// structured error model.
//
// # Overview
//
// One engine call moves one bounded chunk of one file. The caller carries
// all progress state (FileState) between calls; the engine holds nothing,
// so a caller may disappear for hours and resume, and every connection may
// be lost between calls without harming correctness.
//
//	sess := transfer.NewSession(t, retrier, "/data/outbox")
//	res, err := sess.Run(transfer.Request{
//	    Protocol:  "sftp",
//	    Host:      "files.example.com",
//	    Port:      22,
//	    User:      "deploy",
//	    Credential: "secret",
//	    RemoteDir: "incoming/reports",
//	    File:      "2026/q3.pdf",
//	    Offset:    state.Offset,
//	    ChunkSize: 8 << 20,
//	})
//	if err == nil {
//	    state.Apply(res)
//	}
//
// # State machine
//
// Run proceeds INIT → RECONCILE → READ_LOCAL → UPLOAD and then either ends
// as an intermediate success or continues FINALIZE → DONE on the last
// chunk. Finalization is atomic from a remote reader's view: chunks
// accumulate under a ".part" name and a single rename publishes the final
// file, after any stale occupant of that name is deleted and before the
// result size is verified.
//
// # Reconciliation
//
// The caller's offset is never trusted blindly. Before writing, the remote
// partial file is stated and its size adopted as the true resume offset in
// both mismatch directions; see ReconcileOffset for the policy.
//
// # Failure model
//
// Every fatal condition is reported as *Error carrying a Kind, the file
// identity, and the offset at failure time. Transient transport failures
// are retried by the retry package before they become fatal; the remote
// partial file is preserved on every failure path so a later call can
// resume.
package transfer
