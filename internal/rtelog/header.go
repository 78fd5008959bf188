// Package rtelog describes the fixed-shape target structure: a 24-byte
// little-endian header followed by a circular buffer of 32-bit words (§3).
// The layout mirrors the fixed-binary-struct style used for netlink
// messages in the reference corpus (offset-addressed fields, explicit
// little-endian encode/decode rather than unsafe casts).
package rtelog

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is sizeof(header) in bytes; header_size_words*4 must equal
// this value for a target image to be considered valid.
const HeaderSize = 24

// MinTotalSize and MaxTotalSize bound buffer_size*4 + HeaderSize (§3).
const (
	MinTotalSize = 80
	MaxTotalSize = 0x200000 + HeaderSize // 2 MiB + header (~2.1 MB)
)

// Header is the decoded form of the target's 24-byte control structure.
type Header struct {
	LastIndex           uint32
	Filter              uint32
	RteCfg              RteCfg
	TimestampFrequency  uint32
	FilterCopy          uint32
	BufferSize          uint32 // in 32-bit words
}

// Decode parses a HeaderSize-byte little-endian buffer into a Header.
func Decode(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("rtelog: short header: need %d bytes, got %d", HeaderSize, len(b))
	}
	return Header{
		LastIndex:          binary.LittleEndian.Uint32(b[0:4]),
		Filter:             binary.LittleEndian.Uint32(b[4:8]),
		RteCfg:             RteCfg(binary.LittleEndian.Uint32(b[8:12])),
		TimestampFrequency: binary.LittleEndian.Uint32(b[12:16]),
		FilterCopy:         binary.LittleEndian.Uint32(b[16:20]),
		BufferSize:         binary.LittleEndian.Uint32(b[20:24]),
	}, nil
}

// Encode serializes h into a HeaderSize-byte little-endian buffer.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.LastIndex)
	binary.LittleEndian.PutUint32(b[4:8], h.Filter)
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.RteCfg))
	binary.LittleEndian.PutUint32(b[12:16], h.TimestampFrequency)
	binary.LittleEndian.PutUint32(b[16:20], h.FilterCopy)
	binary.LittleEndian.PutUint32(b[20:24], h.BufferSize)
	return b
}

// TotalSize is the size in bytes of header + circular buffer.
func (h Header) TotalSize() uint32 {
	return h.BufferSize*4 + HeaderSize
}

// Validate checks the invariants from §3: header_size_words*4==HeaderSize
// and all reserved bits are zero.
func (h Header) Validate() error {
	if h.RteCfg.HeaderSizeWords()*4 != HeaderSize {
		return fmt.Errorf("rtelog: header_size_words*4 = %d, want %d", h.RteCfg.HeaderSizeWords()*4, HeaderSize)
	}
	if !h.RteCfg.ReservedZero() {
		return fmt.Errorf("rtelog: reserved rte_cfg bits are not zero (0x%08X)", uint32(h.RteCfg))
	}
	return nil
}

// RteCfg is the packed 32-bit configuration word described in §3.
type RteCfg uint32

func (c RteCfg) SingleShotActive() bool         { return c&(1<<0) != 0 }
func (c RteCfg) FilteringEnabled() bool         { return c&(1<<1) != 0 }
func (c RteCfg) FirmwareOffAllowed() bool       { return c&(1<<2) != 0 }
func (c RteCfg) SingleShotCompileEnabled() bool { return c&(1<<3) != 0 }
func (c RteCfg) LongTimestamps() bool           { return c&(1<<4) != 0 }

// TimestampShift returns the configured shift (stored value + 1), bits 8-11.
func (c RteCfg) TimestampShift() int {
	return int((uint32(c)>>8)&0xF) + 1
}

// FormatID returns the 3-bit format id, bits 12-14.
func (c RteCfg) FormatID() int {
	return int((uint32(c) >> 12) & 0x7)
}

// MaxSubpackets returns bits 16-23, with the stored 0 meaning 256.
func (c RteCfg) MaxSubpackets() int {
	v := int((uint32(c) >> 16) & 0xFF)
	if v == 0 {
		return 256
	}
	return v
}

// HeaderSizeWords returns bits 24-30: header size in 32-bit words.
func (c RteCfg) HeaderSizeWords() int {
	return int((uint32(c) >> 24) & 0x7F)
}

// BufferSizeIsPow2 returns bit 31.
func (c RteCfg) BufferSizeIsPow2() bool { return c&(1<<31) != 0 }

// ReservedZero reports whether bits 5-7 and bit 15 (reserved, must be 0)
// are indeed clear.
func (c RteCfg) ReservedZero() bool {
	const reservedMask = (0x7 << 5) | (1 << 15)
	return uint32(c)&reservedMask == 0
}

// WithSingleShot returns c with bit 0 set or cleared.
func (c RteCfg) WithSingleShot(on bool) RteCfg {
	if on {
		return c | (1 << 0)
	}
	return c &^ (1 << 0)
}
