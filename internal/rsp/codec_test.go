package rsp_test

import (
	"bytes"
	"testing"

	"github.com/RTEdbg/RTEgdbData/internal/rerr"
	"github.com/RTEdbg/RTEgdbData/internal/rsp"
)

func TestChecksumKnownFrame(t *testing.T) {
	// "$m24000000,08#" style payload; checksum is the sum of payload
	// bytes mod 256, per §4.2.
	payload := []byte("m24000000,08")
	var want byte
	for _, b := range payload {
		want += b
	}
	if got := rsp.Checksum(payload); got != want {
		t.Fatalf("checksum = %d, want %d", got, want)
	}
}

func TestEncodeExtractFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("qSupported"),
		[]byte("m24000000,08"),
		[]byte("OK"),
		[]byte("E01"),
	}
	for _, p := range payloads {
		frame := rsp.EncodeFrame(p)
		decoded, consumed, ok, err := rsp.ExtractFrame(frame)
		if !ok {
			t.Fatalf("ExtractFrame(%q): not ok", frame)
		}
		if err != nil {
			t.Fatalf("ExtractFrame(%q): %v", frame, err)
		}
		if consumed != len(frame) {
			t.Fatalf("ExtractFrame(%q): consumed %d, want %d", frame, consumed, len(frame))
		}
		if !bytes.Equal(decoded, p) {
			t.Fatalf("ExtractFrame(%q) = %q, want %q", frame, decoded, p)
		}
	}
}

func TestExtractFrameIncomplete(t *testing.T) {
	frame := rsp.EncodeFrame([]byte("OK"))
	for i := 1; i < len(frame); i++ {
		_, _, ok, _ := rsp.ExtractFrame(frame[:i])
		if ok {
			t.Fatalf("ExtractFrame(%q): reported complete at %d/%d bytes", frame[:i], i, len(frame))
		}
	}
}

func TestExtractFrameBadChecksum(t *testing.T) {
	frame := rsp.EncodeFrame([]byte("OK"))
	// Corrupt the checksum's low nibble.
	corrupt := append([]byte(nil), frame...)
	corrupt[len(corrupt)-1] = 'f'
	_, _, ok, err := rsp.ExtractFrame(corrupt)
	if !ok {
		t.Fatal("expected ExtractFrame to report a complete (if malformed) frame")
	}
	if rerr.KindOf(err) != rerr.KindBadChecksum {
		t.Fatalf("got kind %v, want BadChecksum", rerr.KindOf(err))
	}
}

func TestExtractFrameEscape(t *testing.T) {
	// A payload containing a literal '#' must round-trip through the
	// escape/encode path (REDESIGN FLAG: '}' XOR 0x20 byte-stuffing).
	payload := []byte("O#$}*text")
	frame := rsp.EncodeFrame(payload)
	decoded, _, ok, err := rsp.ExtractFrame(frame)
	if !ok || err != nil {
		t.Fatalf("ExtractFrame(%q): ok=%v err=%v", frame, ok, err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("ExtractFrame(%q) = %q, want %q", frame, decoded, payload)
	}
}

func TestExtractFrameRunLength(t *testing.T) {
	// A run-length run: one literal byte 'a' followed by "*" + a count
	// byte encoding "repeat 5 more times" (count = repeat+29, §9 REDESIGN
	// FLAG (b)).
	const repeat = 5
	raw := []byte{'a', '*', byte(repeat + 29)}
	sum := rsp.Checksum(raw)
	csHex := rsp.EncodeHexByte(sum)
	frame := append([]byte{'$'}, raw...)
	frame = append(frame, '#', csHex[0], csHex[1])

	decoded, consumed, ok, err := rsp.ExtractFrame(frame)
	if !ok || err != nil {
		t.Fatalf("ExtractFrame(%q): ok=%v err=%v", frame, ok, err)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed %d, want %d", consumed, len(frame))
	}
	want := bytes.Repeat([]byte{'a'}, repeat+1)
	if !bytes.Equal(decoded, want) {
		t.Fatalf("decoded = %q, want %q", decoded, want)
	}
}

func TestExtractFrameRunLengthMalformed(t *testing.T) {
	// A run-length token with no preceding byte to repeat.
	raw := []byte{'*', byte(29)}
	sum := rsp.Checksum(raw)
	csHex := rsp.EncodeHexByte(sum)
	frame := append([]byte{'$'}, raw...)
	frame = append(frame, '#', csHex[0], csHex[1])

	_, _, ok, err := rsp.ExtractFrame(frame)
	if !ok {
		t.Fatal("expected a complete (if malformed) frame")
	}
	if rerr.KindOf(err) != rerr.KindRunLengthNotImplemented {
		t.Fatalf("got kind %v, want RunLengthNotImplemented", rerr.KindOf(err))
	}
}

func TestIsErrorReply(t *testing.T) {
	cases := []struct {
		payload string
		wantIs  bool
	}{
		{"OK", false},
		{"E01", true},
		{"E.no such command", true},
		{"m0102", false},
	}
	for _, c := range cases {
		_, is := rsp.IsErrorReply([]byte(c.payload))
		if is != c.wantIs {
			t.Errorf("IsErrorReply(%q) is=%v, want %v", c.payload, is, c.wantIs)
		}
	}
}
