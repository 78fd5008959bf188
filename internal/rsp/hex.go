package rsp

import (
	"strings"

	"github.com/RTEdbg/RTEgdbData/internal/rerr"
)

// DecodeHexDigit decodes one case-insensitive hex nibble.
func DecodeHexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, rerr.Newf(rerr.KindBadFormat, "not a hex digit: %q", c)
}

// DecodeHexByte decodes two hex digits (high, low) into one byte.
func DecodeHexByte(hi, lo byte) (byte, error) {
	h, err := DecodeHexDigit(hi)
	if err != nil {
		return 0, err
	}
	l, err := DecodeHexDigit(lo)
	if err != nil {
		return 0, err
	}
	return h<<4 | l, nil
}

func hexDigitLower(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + n - 10
}

// EncodeHexByte renders b as two lowercase hex digits.
func EncodeHexByte(b byte) [2]byte {
	return [2]byte{hexDigitLower(b >> 4), hexDigitLower(b & 0xF)}
}

// DecodeHex decodes an even-length, case-insensitive hex string into bytes.
// It is used to parse 'm' read responses and hex-ASCII console output.
func DecodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, rerr.Newf(rerr.KindBadFormat, "odd-length hex string (%d chars)", len(s))
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		b, err := DecodeHexByte(s[2*i], s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// EncodeHex renders data as lowercase hex, as used for 'M' write payloads.
func EncodeHex(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 2)
	for _, b := range data {
		h := EncodeHexByte(b)
		sb.WriteByte(h[0])
		sb.WriteByte(h[1])
	}
	return sb.String()
}

// FormatAddrLower renders addr as lowercase hex, no leading zeros, as used
// by the tested servers for the 'm' command.
func FormatAddrLower(v uint32) string {
	return formatHexNoPad(v, false)
}

// FormatAddrUpper renders addr as uppercase hex, as used for the 'M' command.
func FormatAddrUpper(v uint32) string {
	return formatHexNoPad(v, true)
}

func formatHexNoPad(v uint32, upper bool) string {
	if v == 0 {
		return "0"
	}
	const digitsLower = "0123456789abcdef"
	const digitsUpper = "0123456789ABCDEF"
	digits := digitsLower
	if upper {
		digits = digitsUpper
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf[i:])
}
