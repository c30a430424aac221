package transfer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ftpush/transport"
)

// ReconcileOffset decides the true resume offset for a transfer by querying
// the remote partial file, never trusting the caller-supplied offset
// blindly.
//
// Policy: the remote partial size is adopted as ground truth in both
// mismatch directions. When the remote is ahead of the caller (a previous
// response was lost after the write succeeded) adopting it avoids resending
// bytes; when the remote is behind (a previous attempt died mid-write)
// adopting it avoids writing past verified data and leaving a gap. The
// partial file is never truncated. A partial larger than the whole file
// cannot belong to this transfer and is deleted, restarting from zero.
func ReconcileOffset(t transport.Transport, partPath string, callerOffset, totalSize int64) (int64, error) {
	remoteSize, exists, err := t.RemoteSize(partPath)
	if err != nil {
		return 0, fmt.Errorf("reconcile stat %s: %w", partPath, err)
	}
	if !exists {
		if callerOffset != 0 {
			logrus.WithFields(logrus.Fields{
				"function":      "ReconcileOffset",
				"part_path":     partPath,
				"caller_offset": callerOffset,
			}).Warn("Caller claims progress but no remote partial exists, restarting from zero")
		}
		return 0, nil
	}

	if remoteSize > totalSize {
		logrus.WithFields(logrus.Fields{
			"function":    "ReconcileOffset",
			"part_path":   partPath,
			"remote_size": remoteSize,
			"total_size":  totalSize,
		}).Warn("Remote partial is larger than the source file, discarding it")
		if err := t.Delete(partPath); err != nil {
			return 0, fmt.Errorf("reconcile discard %s: %w", partPath, err)
		}
		return 0, nil
	}

	if remoteSize != callerOffset {
		logrus.WithFields(logrus.Fields{
			"function":      "ReconcileOffset",
			"part_path":     partPath,
			"caller_offset": callerOffset,
			"remote_size":   remoteSize,
		}).Info("Adopting remote partial size as resume offset")
	}

	return remoteSize, nil
}
