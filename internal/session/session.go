// Package session implements C3: capability negotiation, no-ack mode,
// and unsolicited-frame draining on top of internal/transport and
// internal/rsp. It owns the single scratch receive buffer described in
// §3 ("Session state") and §9 ("Shared scratch buffer") — one
// fixed-capacity, bounded-growth buffer per Session rather than a global,
// per the teacher's pattern of passing a single connection value (aykevl-
// emculator's gdbHandle) rather than reaching for package state.
package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/RTEdbg/RTEgdbData/internal/metrics"
	"github.com/RTEdbg/RTEgdbData/internal/rerr"
	"github.com/RTEdbg/RTEgdbData/internal/rsp"
	"github.com/RTEdbg/RTEgdbData/internal/transport"
	"github.com/RTEdbg/RTEgdbData/pkg/logger"
)

// TCPBuffLength bounds the session's receive buffer; an oversize frame
// from a misbehaving server is rejected rather than grown without limit
// (§9).
const TCPBuffLength = 65535

const (
	defaultMaxPacket = 4096
	maxPacketCeiling = 65535
	minPacketFloor   = 256

	defaultRequestTimeout    = 500 * time.Millisecond
	capabilityQueryTimeout   = 2500 * time.Millisecond
	ackTimeout               = 2500 * time.Millisecond
	trailingConsoleOutWindow = 50 * time.Millisecond
)

// Options configures Connect.
type Options struct {
	Logger              logger.Sink
	RecvPacketOverride  int // 0 = use server-advertised/default
	DetachOnCleanup     bool
}

// Session is the process-wide RSP session state: socket handle, ack mode,
// negotiated packet sizes, and the scratch receive buffer (§3).
type Session struct {
	id      string
	t       *transport.Transport
	log     logger.Sink
	opts    Options

	ackModeEnabled bool
	maxSendPacket  int
	maxRecvPacket  int

	buf     []byte
	lastErr error
}

// Connect opens a TCP connection, drains any greeting bytes, negotiates
// capabilities, and requests no-ack mode (§4.3 "connect").
func Connect(host string, port int, opts Options) (*Session, error) {
	t, err := transport.Connect(host, port)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:             xid.New().String(),
		t:              t,
		log:            opts.Logger,
		opts:           opts,
		ackModeEnabled: true,
		maxSendPacket:  defaultMaxPacket,
		maxRecvPacket:  defaultMaxPacket,
	}
	s.logf("session %s: connecting to %s:%d", s.id, host, port)

	s.drainGreeting()

	if err := s.queryCapabilities(); err != nil {
		t.Close()
		return nil, err
	}
	if opts.RecvPacketOverride != 0 {
		if opts.RecvPacketOverride < minPacketFloor || opts.RecvPacketOverride > maxPacketCeiling {
			t.Close()
			return nil, rerr.Newf(rerr.KindBadInput, "msgsize override %d out of range [%d,%d]", opts.RecvPacketOverride, minPacketFloor, maxPacketCeiling)
		}
		s.maxRecvPacket = opts.RecvPacketOverride
	}
	if err := s.requestNoAck(); err != nil {
		t.Close()
		return nil, err
	}
	metrics.SessionsOpened.Inc()
	return s, nil
}

func (s *Session) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Log(format, args...)
	}
}

// ID returns the short correlation id minted for this session's lifetime,
// attached to all of its log lines.
func (s *Session) ID() string { return s.id }

// LastError returns the most recently recorded error, used by the
// interactive loop's status line (§7).
func (s *Session) LastError() error { return s.lastErr }

func (s *Session) recordErr(err error) error {
	if err != nil {
		s.lastErr = err
		metrics.ErrorsByKind.WithLabelValues(rerr.KindOf(err).String()).Inc()
	}
	return err
}

// MaxSendPacket and MaxRecvPacket report the negotiated packet size caps.
func (s *Session) MaxSendPacket() int { return s.maxSendPacket }
func (s *Session) MaxRecvPacket() int { return s.maxRecvPacket }

// MaxMemoRead and MaxMemoWrite are the derived per-chunk memory transfer
// sizes from §4.4, aligned down to a multiple of 4 bytes.
func (s *Session) MaxMemoRead() int {
	v := ((s.maxRecvPacket - 4) / 8) * 4
	if v < 4 {
		v = 4
	}
	return v
}

func (s *Session) MaxMemoWrite() int {
	v := ((s.maxSendPacket - 16 - 4) / 8) * 4
	if v < 4 {
		v = 4
	}
	return v
}

// drainGreeting performs a short best-effort read to discard any banner
// bytes a server sends immediately on accept, before any RSP traffic.
func (s *Session) drainGreeting() {
	s.fillFor(100 * time.Millisecond)
	s.buf = s.buf[:0]
}

// queryCapabilities sends qSupported and parses the reply (§4.3).
func (s *Session) queryCapabilities() error {
	reply, err := s.Request([]byte("qSupported"), capabilityQueryTimeout)
	if err != nil {
		return s.recordErr(err)
	}
	text := string(reply)
	if !strings.Contains(text, "QStartNoAckMode+") {
		return s.recordErr(rerr.New(rerr.KindUnsupportedServer, "qSupported reply lacks QStartNoAckMode+"))
	}
	s.maxSendPacket = defaultMaxPacket
	for _, field := range strings.Split(text, ";") {
		if strings.HasPrefix(field, "PacketSize=") {
			hexVal := strings.TrimPrefix(field, "PacketSize=")
			v, err := strconv.ParseUint(hexVal, 16, 32)
			if err == nil {
				s.maxSendPacket = int(v)
			}
		}
	}
	if s.maxSendPacket > maxPacketCeiling {
		s.maxSendPacket = maxPacketCeiling
	}
	if s.maxRecvPacket > maxPacketCeiling {
		s.maxRecvPacket = maxPacketCeiling
	}
	return nil
}

// requestNoAck sends QStartNoAckMode and disables ack generation on $OK#.
func (s *Session) requestNoAck() error {
	reply, err := s.Request([]byte("QStartNoAckMode"), defaultRequestTimeout)
	if err != nil {
		return s.recordErr(err)
	}
	if string(reply) != "OK" {
		return s.recordErr(rerr.Newf(rerr.KindBadResponse, "QStartNoAckMode reply was %q, want OK", reply))
	}
	s.ackModeEnabled = false
	return nil
}

// Detach sends 'D' and ignores the reply, per §4.3.
func (s *Session) Detach() {
	_ = s.sendFrame([]byte("D"))
	s.DrainUnsolicited()
}

// DrainUnsolicited performs a non-blocking read loop, logging and
// discarding any frames the server sends without being asked (e.g. stop
// replies after a reset/breakpoint/exception), per §4.3 and §5.
func (s *Session) DrainUnsolicited() {
	s.fillFor(20 * time.Millisecond)
	for {
		if len(s.buf) == 0 {
			return
		}
		if rsp.IsAckByte(s.buf[0]) {
			s.buf = s.buf[1:]
			continue
		}
		if s.buf[0] != '$' {
			// Resync: drop stray bytes that aren't a frame or ack token.
			s.buf = s.buf[1:]
			continue
		}
		payload, consumed, ok, err := rsp.ExtractFrame(s.buf)
		if !ok {
			return
		}
		s.buf = s.buf[consumed:]
		if err != nil {
			s.logf("session %s: discarding malformed unsolicited frame: %v", s.id, err)
			continue
		}
		if s.ackModeEnabled {
			_ = s.t.Send([]byte{'+'})
		}
		s.logf("session %s: discarding unsolicited frame %q", s.id, payload)
	}
}

// Cleanup closes the underlying socket, optionally detaching first.
func (s *Session) Cleanup() error {
	if s.opts.DetachOnCleanup {
		s.Detach()
	}
	metrics.SessionsClosed.Inc()
	return s.t.Close()
}

func (s *Session) sendFrame(payload []byte) error {
	frame := rsp.EncodeFrame(payload)
	metrics.FramesSent.Inc()
	return s.t.Send(frame)
}

// consumeAck reads until a leading '+' or '-' token is found, within
// timeout. A '-' is reported as BadResponse since this client does not
// implement automatic retry (Non-goal, spec §1).
func (s *Session) consumeAck(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		for len(s.buf) > 0 && !rsp.IsAckByte(s.buf[0]) && s.buf[0] != '$' {
			s.buf = s.buf[1:]
		}
		if len(s.buf) > 0 && rsp.IsAckByte(s.buf[0]) {
			ack := s.buf[0]
			s.buf = s.buf[1:]
			if ack == '-' {
				return rerr.New(rerr.KindBadResponse, "server sent '-' (resend requested); no automatic retry")
			}
			return nil
		}
		if len(s.buf) > 0 && s.buf[0] == '$' {
			// Server skipped the ack and went straight to its reply; some
			// probes do this once no-ack negotiation is in flight. Treat
			// as implicit ack.
			return nil
		}
		if time.Now().After(deadline) {
			return rerr.New(rerr.KindRecvTimeout, "timed out waiting for ack")
		}
		s.fillOnce(deadline)
	}
}

// recvFrame waits up to timeout for one complete frame, resyncing past
// any stray bytes or stale ack tokens in front of it.
func (s *Session) recvFrame(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		for len(s.buf) > 0 && rsp.IsAckByte(s.buf[0]) {
			s.buf = s.buf[1:]
		}
		for len(s.buf) > 0 && s.buf[0] != '$' {
			s.buf = s.buf[1:]
		}
		if len(s.buf) > 0 {
			payload, consumed, ok, err := rsp.ExtractFrame(s.buf)
			if ok {
				s.buf = s.buf[consumed:]
				metrics.FramesReceived.Inc()
				if err == nil && s.ackModeEnabled {
					_ = s.t.Send([]byte{'+'})
				}
				return payload, err
			}
		}
		if time.Now().After(deadline) {
			return nil, rerr.New(rerr.KindRecvTimeout, "timed out waiting for frame")
		}
		s.fillOnce(deadline)
	}
}

// Request sends payload as one command frame and returns the decoded
// reply payload, applying ack-mode receive discipline and the supplied
// per-request timeout (§4.3, §5: one response per request, no pipelining).
func (s *Session) Request(payload []byte, timeout time.Duration) ([]byte, error) {
	if err := s.sendFrame(payload); err != nil {
		return nil, s.recordErr(err)
	}
	if s.ackModeEnabled {
		if err := s.consumeAck(ackTimeout); err != nil {
			return nil, s.recordErr(err)
		}
	}
	reply, err := s.recvFrame(timeout)
	if err != nil {
		return nil, s.recordErr(err)
	}
	return reply, nil
}

// RequestDefault is Request with the standard 500ms request timeout.
func (s *Session) RequestDefault(payload []byte) ([]byte, error) {
	return s.Request(payload, defaultRequestTimeout)
}

// TrailingConsoleWindow exposes the 50ms bound used by the command
// executor to pull in additional chained "$O..." frames.
func (s *Session) TrailingConsoleWindow() time.Duration { return trailingConsoleOutWindow }

// RecvWithTimeout exposes recvFrame for callers (the command executor)
// that need to read an additional chained reply without sending a new
// request.
func (s *Session) RecvWithTimeout(timeout time.Duration) ([]byte, error) {
	return s.recvFrame(timeout)
}

// fillOnce performs one bounded read, appending to the buffer, sleeping
// briefly if nothing arrived and the deadline has not passed.
func (s *Session) fillOnce(deadline time.Time) {
	chunk := make([]byte, 4096)
	n, _, err := s.t.RecvSome(chunk)
	if err != nil {
		if rerr.KindOf(err) == rerr.KindConnectionClosed {
			s.lastErr = err
		}
	}
	if n > 0 {
		s.appendBuf(chunk[:n])
		return
	}
	if time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

// fillFor performs best-effort reads for the given duration, used for
// greeting/unsolicited draining where there is no frame being awaited.
func (s *Session) fillFor(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		chunk := make([]byte, 4096)
		n, _, _ := s.t.RecvSome(chunk)
		if n > 0 {
			s.appendBuf(chunk[:n])
		}
	}
}

func (s *Session) appendBuf(b []byte) {
	if len(s.buf)+len(b) > TCPBuffLength {
		// Oversize frame from a misbehaving server: drop the buffer
		// rather than grow it without limit (§9).
		s.logf("session %s: receive buffer would exceed %d bytes, discarding", s.id, TCPBuffLength)
		s.buf = s.buf[:0]
		return
	}
	s.buf = append(s.buf, b...)
}
