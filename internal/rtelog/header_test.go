package rtelog_test

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/RTEdbg/RTEgdbData/internal/rtelog"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := rtelog.Header{
		LastIndex:          42,
		Filter:             0xDEADBEEF,
		RteCfg:             rtelog.RteCfg(0x0600_000F),
		TimestampFrequency: 48_000_000,
		FilterCopy:         0x1,
		BufferSize:         1024,
	}
	got, err := rtelog.Decode(h.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := deep.Equal(got, h); diff != nil {
		t.Errorf("round trip mismatch: %v", diff)
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	if _, err := rtelog.Decode(make([]byte, rtelog.HeaderSize-1)); err == nil {
		t.Fatal("expected an error decoding a short buffer")
	}
}

func TestHeaderTotalSize(t *testing.T) {
	h := rtelog.Header{BufferSize: 100}
	if got, want := h.TotalSize(), uint32(100*4+rtelog.HeaderSize); got != want {
		t.Fatalf("TotalSize() = %d, want %d", got, want)
	}
}

func TestHeaderValidate(t *testing.T) {
	// header_size_words = 6 -> 6*4 = 24 = HeaderSize; no reserved bits set.
	h := rtelog.Header{RteCfg: rtelog.RteCfg(6 << 24)}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	bad := rtelog.Header{RteCfg: rtelog.RteCfg(5 << 24)}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected Validate to reject a mismatched header_size_words")
	}

	reserved := rtelog.Header{RteCfg: rtelog.RteCfg((6 << 24) | (1 << 5))}
	if err := reserved.Validate(); err == nil {
		t.Fatal("expected Validate to reject a set reserved bit")
	}
}

func TestRteCfgBitAccessors(t *testing.T) {
	var c rtelog.RteCfg
	if c.SingleShotActive() {
		t.Fatal("zero value should not report single-shot active")
	}
	c2 := c.WithSingleShot(true)
	if !c2.SingleShotActive() {
		t.Fatal("WithSingleShot(true) should set bit 0")
	}
	c3 := c2.WithSingleShot(false)
	if c3.SingleShotActive() {
		t.Fatal("WithSingleShot(false) should clear bit 0")
	}

	cfg := rtelog.RteCfg(0x02<<12 | 0x05<<8 | 0x00<<16 | 0x06<<24)
	if got := cfg.FormatID(); got != 2 {
		t.Errorf("FormatID() = %d, want 2", got)
	}
	if got := cfg.TimestampShift(); got != 6 {
		t.Errorf("TimestampShift() = %d, want 6", got)
	}
	if got := cfg.MaxSubpackets(); got != 256 {
		t.Errorf("MaxSubpackets() = %d, want 256 (stored 0)", got)
	}
	if got := cfg.HeaderSizeWords(); got != 6 {
		t.Errorf("HeaderSizeWords() = %d, want 6", got)
	}
}
