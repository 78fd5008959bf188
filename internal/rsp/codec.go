// Package rsp implements the GDB Remote Serial Protocol wire codec: frame
// encode/decode, the 8-bit checksum, byte-stuffing escapes and run-length
// decoding (REDESIGN FLAGS #1-#2), and the hex codecs in hex.go. Modeled on
// the framing shown in aykevl-emculator's gdb-rsp.go (checksum computed as
// the unsigned sum of payload bytes mod 256, "$payload#hh" framing), with
// the escape/RLE handling the teacher's server omits added per spec.
package rsp

import (
	"github.com/RTEdbg/RTEgdbData/internal/rerr"
)

// needsEscape reports whether c must be escaped with '}' (XOR 0x20) when
// present in a logical payload, per the RSP presentation layer.
func needsEscape(c byte) bool {
	switch c {
	case '#', '$', '}', '*':
		return true
	}
	return false
}

// Checksum computes the RSP checksum: the unsigned sum of the raw wire
// bytes (i.e. after escaping/RLE, exactly as transmitted) modulo 256.
func Checksum(raw []byte) byte {
	var sum byte
	for _, b := range raw {
		sum += b
	}
	return sum
}

// EncodeFrame builds a complete "$payload#hh" frame from a logical
// (unescaped) payload, escaping reserved bytes as it goes. It never emits
// run-length encoding; this client always sends literal bytes.
func EncodeFrame(payload []byte) []byte {
	raw := make([]byte, 0, len(payload)+4)
	for _, c := range payload {
		if needsEscape(c) {
			raw = append(raw, '}', c^0x20)
		} else {
			raw = append(raw, c)
		}
	}
	sum := Checksum(raw)
	h := EncodeHexByte(sum)
	out := make([]byte, 0, len(raw)+4)
	out = append(out, '$')
	out = append(out, raw...)
	out = append(out, '#')
	out = append(out, h[0], h[1])
	return out
}

// EncodeFrameString is a convenience wrapper for ASCII command payloads.
func EncodeFrameString(payload string) []byte {
	return EncodeFrame([]byte(payload))
}

// IsAckByte reports whether b is a standalone ack/nack token.
func IsAckByte(b byte) bool {
	return b == '+' || b == '-'
}

// ExtractFrame attempts to parse one complete RSP frame beginning at
// buf[0], which must be '$'. It decodes byte-stuffing escapes and
// run-length runs into the returned logical payload.
//
// Return values:
//   - ok=false: buf does not yet contain a complete frame; the caller
//     should read more bytes from the transport and retry. consumed is
//     meaningless in this case; err is nil, except when buf is empty or
//     does not start with '$', where it is a BadFormat error.
//   - ok=true, err==nil: a well-formed frame was found; payload is the
//     decoded logical payload and consumed is the number of bytes of buf
//     it occupied (including the leading '$' and trailing "#hh").
//   - ok=true, err!=nil: a complete frame was found but is malformed
//     (bad checksum, bad checksum hex, or a run-length run with an
//     out-of-range repeat count or no preceding byte to repeat); consumed
//     still reports its length so
//     the caller can skip past it.
func ExtractFrame(buf []byte) (payload []byte, consumed int, ok bool, err error) {
	if len(buf) == 0 || buf[0] != '$' {
		return nil, 0, false, rerr.New(rerr.KindBadFormat, "frame does not start with '$'")
	}

	var raw []byte
	var decoded []byte
	var rleErr error
	i := 1
	for {
		if i >= len(buf) {
			return nil, 0, false, nil
		}
		c := buf[i]
		if c == '#' {
			break
		}
		raw = append(raw, c)
		i++

		if c == '}' {
			if i >= len(buf) {
				return nil, 0, false, nil
			}
			esc := buf[i]
			raw = append(raw, esc)
			i++
			decoded = append(decoded, esc^0x20)
			continue
		}
		if c == '*' {
			if i >= len(buf) {
				return nil, 0, false, nil
			}
			rc := buf[i]
			raw = append(raw, rc)
			i++
			repeat := int(rc) - 29
			if repeat < 0 || len(decoded) == 0 {
				if rleErr == nil {
					rleErr = rerr.Newf(rerr.KindRunLengthNotImplemented, "malformed run-length repeat count %d", repeat)
				}
				continue
			}
			prev := decoded[len(decoded)-1]
			for k := 0; k < repeat; k++ {
				decoded = append(decoded, prev)
			}
			continue
		}
		decoded = append(decoded, c)
	}

	// buf[i] == '#'; need two more bytes for the checksum.
	if i+2 >= len(buf) {
		return nil, 0, false, nil
	}
	consumed = i + 3
	cs, hexErr := DecodeHexByte(buf[i+1], buf[i+2])
	if hexErr != nil {
		return nil, consumed, true, rerr.New(rerr.KindBadFormat, "malformed checksum hex")
	}
	if Checksum(raw) != cs {
		return decoded, consumed, true, rerr.New(rerr.KindBadChecksum, "checksum mismatch")
	}
	if rleErr != nil {
		return decoded, consumed, true, rleErr
	}
	return decoded, consumed, true, nil
}

// IsErrorReply reports whether payload encodes a GDB "$E..." error reply,
// and if so returns the error text (either the decoded two-hex-digit code
// as a string, or the textual message after "E.").
func IsErrorReply(payload []byte) (text string, is bool) {
	if len(payload) == 0 || payload[0] != 'E' {
		return "", false
	}
	rest := payload[1:]
	if len(rest) >= 1 && rest[0] == '.' {
		return string(rest[1:]), true
	}
	if len(rest) == 2 {
		if b, err := DecodeHexByte(rest[0], rest[1]); err == nil {
			return FormatAddrLower(uint32(b)), true
		}
	}
	return string(rest), true
}
