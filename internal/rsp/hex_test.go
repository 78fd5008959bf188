package rsp_test

import (
	"testing"

	"github.com/RTEdbg/RTEgdbData/internal/rerr"
	"github.com/RTEdbg/RTEgdbData/internal/rsp"
)

func TestHexByteRoundTrip(t *testing.T) {
	for b := 0; b < 256; b++ {
		h := rsp.EncodeHexByte(byte(b))
		got, err := rsp.DecodeHexByte(h[0], h[1])
		if err != nil {
			t.Fatalf("byte %d: decode failed: %v", b, err)
		}
		if got != byte(b) {
			t.Fatalf("byte %d: round-trip got %d", b, got)
		}
	}
}

func TestDecodeHexByteBadDigit(t *testing.T) {
	if _, err := rsp.DecodeHexByte('G', 'Z'); err == nil {
		t.Fatal("expected an error decoding non-hex digits")
	} else if rerr.KindOf(err) != rerr.KindBadFormat {
		t.Fatalf("got kind %v, want BadFormat", rerr.KindOf(err))
	}
}

func TestDecodeHexOddLength(t *testing.T) {
	if _, err := rsp.DecodeHex("abc"); err == nil {
		t.Fatal("expected an error for odd-length hex string")
	}
}

func TestEncodeDecodeHex(t *testing.T) {
	data := []byte{0x00, 0x01, 0x7F, 0x80, 0xFF}
	encoded := rsp.EncodeHex(data)
	decoded, err := rsp.DecodeHex(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != string(data) {
		t.Fatalf("got %v, want %v", decoded, data)
	}
}

func TestFormatAddr(t *testing.T) {
	cases := []struct {
		v     uint32
		lower string
		upper string
	}{
		{0, "0", "0"},
		{0x1000, "1000", "1000"},
		{0x24000000, "24000000", "24000000"},
		{0xabcdef, "abcdef", "ABCDEF"},
	}
	for _, c := range cases {
		if got := rsp.FormatAddrLower(c.v); got != c.lower {
			t.Errorf("FormatAddrLower(0x%x) = %q, want %q", c.v, got, c.lower)
		}
		if got := rsp.FormatAddrUpper(c.v); got != c.upper {
			t.Errorf("FormatAddrUpper(0x%x) = %q, want %q", c.v, got, c.upper)
		}
	}
}
