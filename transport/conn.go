package transport

import (
	"net"
	"time"
)

// deadlineConn enforces a rolling per-operation I/O deadline: every Read
// and Write arms a fresh deadline, so a stalled peer surfaces as a
// net.Error timeout instead of blocking the engine call forever. A zero
// timeout disables the deadlines.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
