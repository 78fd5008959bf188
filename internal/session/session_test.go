package session_test

import (
	"net"
	"strconv"
	"testing"

	"github.com/RTEdbg/RTEgdbData/internal/rerr"
	"github.com/RTEdbg/RTEgdbData/internal/rsp"
	"github.com/RTEdbg/RTEgdbData/internal/session"
)

// stubServer accepts exactly one connection and answers qSupported and
// QStartNoAckMode with the given scripted replies, simulating just enough
// of a GDB RSP server for Connect's negotiation to exercise.
func stubServer(t *testing.T, qSupportedReply, noAckReply string) (port int, done chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(portStr)
	done = make(chan struct{})

	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		buf := make([]byte, 4096)
		readFrame := func() ([]byte, bool) {
			for {
				n, err := conn.Read(buf)
				if err != nil {
					return nil, false
				}
				payload, _, ok, decErr := rsp.ExtractFrame(buf[:n])
				if ok && decErr == nil {
					return payload, true
				}
			}
		}

		p, ok := readFrame()
		if !ok || string(p) != "qSupported" {
			return
		}
		conn.Write(rsp.EncodeFrameString(qSupportedReply))

		p, ok = readFrame()
		if !ok || string(p) != "QStartNoAckMode" {
			return
		}
		conn.Write(rsp.EncodeFrameString(noAckReply))
	}()
	return port, done
}

func TestConnectNegotiatesPacketSize(t *testing.T) {
	port, done := stubServer(t, "QStartNoAckMode+;PacketSize=1000", "OK")
	s, err := session.Connect("127.0.0.1", port, session.Options{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Cleanup()
	<-done

	if got, want := s.MaxSendPacket(), 0x1000; got != want {
		t.Errorf("MaxSendPacket() = %d, want %d", got, want)
	}
	if got, want := s.MaxMemoRead(), 2044; got != want {
		t.Errorf("MaxMemoRead() = %d, want %d", got, want)
	}
	// floor((0x1000-16-4)/8)*4 = floor(4076/8)*4 = 509*4 = 2036, per the
	// derived formula; the spec's own worked example states 2028, which
	// this formula does not reproduce (see DESIGN.md).
	if got, want := s.MaxMemoWrite(), 2036; got != want {
		t.Errorf("MaxMemoWrite() = %d, want %d", got, want)
	}
}

func TestConnectUnsupportedServer(t *testing.T) {
	port, _ := stubServer(t, "swbreak+;hwbreak+", "OK")
	_, err := session.Connect("127.0.0.1", port, session.Options{})
	if err == nil {
		t.Fatal("expected Connect to fail without QStartNoAckMode+")
	}
	if rerr.KindOf(err) != rerr.KindUnsupportedServer {
		t.Fatalf("got kind %v, want UnsupportedServer", rerr.KindOf(err))
	}
}

func TestConnectRecvPacketOverrideOutOfRange(t *testing.T) {
	port, _ := stubServer(t, "QStartNoAckMode+;PacketSize=1000", "OK")
	_, err := session.Connect("127.0.0.1", port, session.Options{RecvPacketOverride: 100})
	if rerr.KindOf(err) != rerr.KindBadInput {
		t.Fatalf("got kind %v, want BadInput", rerr.KindOf(err))
	}
}

func TestConnectRefused(t *testing.T) {
	// A port nothing is listening on; dial should fail promptly.
	_, err := session.Connect("127.0.0.1", 1, session.Options{})
	if err == nil {
		t.Fatal("expected Connect to fail against a closed port")
	}
}
