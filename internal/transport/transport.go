// Package transport implements C1: IPv4 TCP connect/send/recv with the
// fixed timeouts described in §4.1, wrapping net.Conn the way
// aykevl-emculator's gdbServer wraps a net.Conn in a bufio.ReadWriter, but
// client-side and with explicit deadlines instead of a blocking bufio
// reader (the teacher is a server accepting one blocking connection; this
// client must poll with short deadlines so it never wedges on a wedged
// probe).
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/RTEdbg/RTEgdbData/internal/rerr"
)

// RecvTimeout is the per-syscall receive deadline: short, so the caller's
// read loop can interleave with higher-level per-request timeouts.
const RecvTimeout = 1 * time.Millisecond

// SendTimeout is the per-syscall send deadline.
const SendTimeout = 50 * time.Millisecond

// Transport is a thin wrapper over a TCP connection enforcing the fixed
// per-syscall timeouts; Session builds request-level timeouts on top of it.
type Transport struct {
	conn net.Conn
}

// Connect opens an IPv4 TCP connection to host:port.
func Connect(host string, port int) (*Transport, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp4", addr, 5*time.Second)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindSocketError, err, fmt.Sprintf("connect %s", addr))
	}
	return &Transport{conn: conn}, nil
}

// Send writes b in full, subject to SendTimeout. A short write (the
// deadline firing mid-write) is reported as PartialSend; a hard socket
// error is SocketError; the deadline firing before any bytes were
// written is SendTimeout.
func (t *Transport) Send(b []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(SendTimeout)); err != nil {
		return rerr.Wrap(rerr.KindSocketError, err, "set write deadline")
	}
	n, err := t.conn.Write(b)
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		if n == 0 {
			return rerr.Wrap(rerr.KindSendTimeout, err, "send timed out")
		}
		return rerr.Wrap(rerr.KindPartialSend, err, fmt.Sprintf("sent %d/%d bytes before timeout", n, len(b)))
	}
	return rerr.Wrap(rerr.KindSocketError, err, "send")
}

// RecvSome performs one bounded read into buf, returning the number of
// bytes read. WouldBlock (the RecvTimeout deadline firing with no data)
// is reported via ok=false, err=nil so normal polling callers don't need
// to unwrap errors on every iteration.
func (t *Transport) RecvSome(buf []byte) (n int, ok bool, err error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(RecvTimeout)); err != nil {
		return 0, false, rerr.Wrap(rerr.KindSocketError, err, "set read deadline")
	}
	n, err = t.conn.Read(buf)
	if err == nil {
		return n, true, nil
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return n, n > 0, rerr.Wrap(rerr.KindConnectionClosed, err, "connection closed")
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, n > 0, nil
	}
	return n, n > 0, rerr.Wrap(rerr.KindSocketError, err, "recv")
}

// Close closes the underlying socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}
