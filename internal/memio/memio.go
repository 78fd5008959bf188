// Package memio implements C4: segmented 'm'/'M' memory transfers, split
// into chunks bounded by the session's negotiated max_memo_read/
// max_memo_write, mirroring the hex-codec shape of aykevl-emculator's
// gdb-rsp.go 'm' command handler (there: encode/decode hex.EncodeToString
// server-side; here: the client issuing the same commands and decoding
// the replies).
package memio

import (
	"time"

	"github.com/RTEdbg/RTEgdbData/internal/metrics"
	"github.com/RTEdbg/RTEgdbData/internal/rerr"
	"github.com/RTEdbg/RTEgdbData/internal/rsp"
)

// Requester is the subset of *session.Session that memio depends on,
// narrowed so this package (and its tests) do not need the concrete
// session type.
type Requester interface {
	Request(payload []byte, timeout time.Duration) ([]byte, error)
	MaxMemoRead() int
	MaxMemoWrite() int
}

const requestTimeout = 500 * time.Millisecond

// ReadMemory reads length bytes starting at addr from the target,
// splitting the transfer into chunks of at most MaxMemoRead() bytes.
// The output slice must already have the requested length.
func ReadMemory(s Requester, addr uint32, length int, out []byte) error {
	if length < 0 || len(out) < length {
		return rerr.New(rerr.KindBadInput, "read_memory: output buffer shorter than requested length")
	}
	chunkMax := s.MaxMemoRead()
	if chunkMax <= 0 {
		return rerr.New(rerr.KindBadInput, "read_memory: non-positive max_memo_read")
	}
	offset := 0
	for offset < length {
		n := length - offset
		if n > chunkMax {
			n = chunkMax
		}
		if err := readChunk(s, addr+uint32(offset), n, out[offset:offset+n]); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

func readChunk(s Requester, addr uint32, n int, out []byte) error {
	cmd := "m" + rsp.FormatAddrLower(addr) + "," + rsp.FormatAddrLower(uint32(n))
	reply, err := s.Request([]byte(cmd), requestTimeout)
	if err != nil {
		return err
	}
	if text, isErr := rsp.IsErrorReply(reply); isErr {
		return rerr.Newf(rerr.KindGdbReported, "read_memory at 0x%x: %s", addr, text).WithBytes(reply)
	}
	if len(reply) != 2*n {
		return rerr.Newf(rerr.KindBadResponse, "read_memory at 0x%x: expected %d hex chars, got %d", addr, 2*n, len(reply)).WithBytes(reply)
	}
	decoded, err := rsp.DecodeHex(string(reply))
	if err != nil {
		return err
	}
	copy(out, decoded)
	metrics.BytesRead.Add(float64(n))
	return nil
}

// WriteMemory writes data to addr, splitting into chunks of at most
// MaxMemoWrite() bytes.
func WriteMemory(s Requester, addr uint32, data []byte) error {
	chunkMax := s.MaxMemoWrite()
	if chunkMax <= 0 {
		return rerr.New(rerr.KindBadInput, "write_memory: non-positive max_memo_write")
	}
	offset := 0
	for offset < len(data) {
		n := len(data) - offset
		if n > chunkMax {
			n = chunkMax
		}
		if err := writeChunk(s, addr+uint32(offset), data[offset:offset+n]); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

func writeChunk(s Requester, addr uint32, chunk []byte) error {
	cmd := "M" + rsp.FormatAddrUpper(addr) + "," + rsp.FormatAddrUpper(uint32(len(chunk))) + ":" + rsp.EncodeHex(chunk)
	reply, err := s.Request([]byte(cmd), requestTimeout)
	if err != nil {
		return err
	}
	if text, isErr := rsp.IsErrorReply(reply); isErr {
		return rerr.Newf(rerr.KindGdbReported, "write_memory at 0x%x: %s", addr, text).WithBytes(reply)
	}
	if string(reply) != "OK" {
		return rerr.Newf(rerr.KindBadResponse, "write_memory at 0x%x: expected OK, got %q", addr, reply).WithBytes(reply)
	}
	metrics.BytesWritten.Add(float64(len(chunk)))
	return nil
}
