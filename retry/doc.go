// Package retry implements the bounded retry and backoff policy that wraps
// every remote operation of the upload engine.
//
// A Controller runs an operation up to a configured number of attempts,
// sleeping between attempts with an exponentially growing, capped delay.
// Before each retry it asks the transport whether the session is still
// alive and re-establishes it when it is not, so a dropped connection heals
// inside the retry loop instead of failing the whole chunk.
//
// Failures are classified: authentication rejections, cancelled contexts,
// and errors marked with Permanent short-circuit immediately; FTP permanent
// (5xx) replies do the same. Everything else is presumed transient and
// retried until the budget is exhausted, at which point the last error is
// returned wrapped in ErrBudgetExhausted.
package retry
