package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"
)

// FTPTransport implements Transport over plain FTP using jlaffaye/ftp.
//
// The backend carries one capability gap: there is no native append for
// resumed uploads, so WriteChunk in append mode downloads the existing
// partial file to a local spool, then re-uploads spool plus new bytes as
// one stream. That cost is accepted as the transport's known inefficiency
// and never leaks out of this file.
type FTPTransport struct {
	cfg  Config
	conn *ftp.ServerConn
}

// NewFTP creates an unconnected FTP transport.
func NewFTP(cfg Config) *FTPTransport {
	return &FTPTransport{cfg: cfg}
}

// Connect dials the control connection and logs in. The credential is always
// used as a password; FTP has no key authentication. Any live session is
// closed first so a repeated Connect never leaks one.
func (t *FTPTransport) Connect() error {
	if t.conn != nil {
		t.closeQuietly()
	}
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"protocol": "ftp",
		"addr":     addr,
		"user":     t.cfg.User,
	}).Debug("Dialing FTP server")

	// The dial func is used for the data connections too, so the rolling
	// I/O deadline covers transfers as well as control commands.
	dial := func(network, address string) (net.Conn, error) {
		conn, err := net.DialTimeout(network, address, t.cfg.connectTimeout())
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, timeout: t.cfg.operationTimeout()}, nil
	}
	conn, err := ftp.Dial(addr, ftp.DialWithDialFunc(dial))
	if err != nil {
		return fmt.Errorf("ftp dial %s: %w", addr, err)
	}

	if err := conn.Login(t.cfg.User, t.cfg.Credential); err != nil {
		_ = conn.Quit()
		if isFTPAuthError(err) {
			return fmt.Errorf("ftp login %s: %w: %v", addr, ErrAuthentication, err)
		}
		return fmt.Errorf("ftp login %s: %w", addr, err)
	}

	t.conn = conn
	return nil
}

// EnsureDir creates each path segment in turn, ignoring per-segment
// failures, then verifies the full path by changing into it. Servers that
// reject redundant creates with an error for existing directories are
// tolerated this way.
func (t *FTPTransport) EnsureDir(path string) error {
	if t.conn == nil {
		return ErrNotConnected
	}
	segments := splitRemotePath(path)
	if len(segments) == 0 {
		return nil
	}

	cur := ""
	if strings.HasPrefix(path, "/") {
		cur = "/"
	}
	for _, seg := range segments {
		if cur == "" || cur == "/" {
			cur += seg
		} else {
			cur += "/" + seg
		}
		if err := t.conn.MakeDir(cur); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "EnsureDir",
				"protocol": "ftp",
				"segment":  cur,
				"error":    err.Error(),
			}).Debug("MakeDir failed, continuing (segment may already exist)")
		}
	}

	// Verify by changing into the full path and restoring the previous
	// working directory. This is the loud check the per-segment loop skips.
	prev, err := t.conn.CurrentDir()
	if err != nil {
		return fmt.Errorf("ftp pwd: %w", err)
	}
	if err := t.conn.ChangeDir(cur); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDirectoryUnavailable, cur, err)
	}
	if err := t.conn.ChangeDir(prev); err != nil {
		return fmt.Errorf("ftp restore cwd %s: %w", prev, err)
	}
	return nil
}

// WriteChunk stores the chunk. Create mode uploads the data as the new file
// content. Append mode emulates an append: it downloads the current partial,
// verifies its length matches the expected offset, and re-uploads partial
// plus chunk in one store.
func (t *FTPTransport) WriteChunk(path string, data []byte, mode WriteMode, offset int64) error {
	if t.conn == nil {
		return ErrNotConnected
	}

	logrus.WithFields(logrus.Fields{
		"function": "WriteChunk",
		"protocol": "ftp",
		"path":     path,
		"mode":     mode.String(),
		"offset":   offset,
		"bytes":    len(data),
	}).Debug("Writing chunk")

	if mode == WriteModeCreate {
		if err := t.conn.Stor(path, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("ftp stor %s: %w", path, err)
		}
		return nil
	}

	spool, partialSize, err := t.downloadToSpool(path)
	if err != nil {
		return fmt.Errorf("ftp append download %s: %w", path, err)
	}
	defer func() {
		if closeErr := spool.Close(); closeErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "WriteChunk",
				"protocol": "ftp",
				"error":    closeErr.Error(),
			}).Warn("Failed to close append spool file")
		}
		if rmErr := os.Remove(spool.Name()); rmErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "WriteChunk",
				"protocol": "ftp",
				"error":    rmErr.Error(),
			}).Warn("Failed to remove append spool file")
		}
	}()
	if partialSize != offset {
		return fmt.Errorf("ftp append %s: partial is %d bytes, expected %d", path, partialSize, offset)
	}

	combined := io.MultiReader(spool, bytes.NewReader(data))
	if err := t.conn.Stor(path, combined); err != nil {
		return fmt.Errorf("ftp append stor %s: %w", path, err)
	}
	return nil
}

// downloadToSpool retrieves the remote file into a local temporary file,
// so the append emulation streams the partial instead of holding it in
// memory. The caller closes and removes the returned file.
func (t *FTPTransport) downloadToSpool(path string) (*os.File, int64, error) {
	resp, err := t.conn.Retr(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if closeErr := resp.Close(); closeErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "downloadToSpool",
				"protocol": "ftp",
				"path":     path,
				"error":    closeErr.Error(),
			}).Warn("Failed to close RETR data connection")
		}
	}()
	return spoolToTemp(resp)
}

// spoolToTemp copies r into a temporary file and rewinds it for reading.
func spoolToTemp(r io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "ftpush-append-*")
	if err != nil {
		return nil, 0, err
	}
	n, err := io.Copy(f, r)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, 0, err
	}
	return f, n, nil
}

// RemoteSize queries the file size with SIZE. A 550 reply maps to absent.
func (t *FTPTransport) RemoteSize(path string) (int64, bool, error) {
	if t.conn == nil {
		return 0, false, ErrNotConnected
	}
	size, err := t.conn.FileSize(path)
	if err != nil {
		if isFTPNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("ftp size %s: %w", path, err)
	}
	return size, true, nil
}

// Rename issues RNFR/RNTO. A missing source fails with the server's error.
func (t *FTPTransport) Rename(oldPath, newPath string) error {
	if t.conn == nil {
		return ErrNotConnected
	}
	if err := t.conn.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("ftp rename %s -> %s: %w", oldPath, newPath, err)
	}
	return nil
}

// Delete removes the file, treating a 550 (no such file) as success.
func (t *FTPTransport) Delete(path string) error {
	if t.conn == nil {
		return ErrNotConnected
	}
	if err := t.conn.Delete(path); err != nil && !isFTPNotFound(err) {
		return fmt.Errorf("ftp delete %s: %w", path, err)
	}
	return nil
}

// IsConnected probes the control connection with NOOP.
func (t *FTPTransport) IsConnected() bool {
	if t.conn == nil {
		return false
	}
	return t.conn.NoOp() == nil
}

// Reconnect discards the old session and dials a fresh one.
func (t *FTPTransport) Reconnect() error {
	logrus.WithFields(logrus.Fields{
		"function": "Reconnect",
		"protocol": "ftp",
		"host":     t.cfg.Host,
	}).Info("Re-establishing FTP session")

	return t.Connect()
}

// Close sends QUIT and drops the connection.
func (t *FTPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Quit()
	t.conn = nil
	return err
}

func (t *FTPTransport) closeQuietly() {
	if t.conn == nil {
		return
	}
	if err := t.conn.Quit(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "closeQuietly",
			"protocol": "ftp",
			"error":    err.Error(),
		}).Debug("QUIT on stale session failed")
	}
	t.conn = nil
}

// isFTPNotFound reports whether the error is a 550 "file unavailable" reply.
func isFTPNotFound(err error) bool {
	var proto *textproto.Error
	return errors.As(err, &proto) && proto.Code == ftp.StatusFileUnavailable
}

// isFTPAuthError reports whether the error is a 530 "not logged in" reply.
func isFTPAuthError(err error) bool {
	var proto *textproto.Error
	return errors.As(err, &proto) && proto.Code == ftp.StatusNotLoggedIn
}

// splitRemotePath splits a slash-separated remote path into its segments.
func splitRemotePath(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && p != "." {
			segments = append(segments, p)
		}
	}
	return segments
}
