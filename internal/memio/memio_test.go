package memio_test

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/RTEdbg/RTEgdbData/internal/memio"
	"github.com/RTEdbg/RTEgdbData/internal/rsp"
)

// fakeTarget backs a Requester with an in-memory byte image, answering
// 'm'/'M' commands the way a real GDB server would.
type fakeTarget struct {
	mem      []byte
	maxRead  int
	maxWrite int
	calls    int
}

func (f *fakeTarget) MaxMemoRead() int  { return f.maxRead }
func (f *fakeTarget) MaxMemoWrite() int { return f.maxWrite }

func (f *fakeTarget) Request(payload []byte, _ time.Duration) ([]byte, error) {
	f.calls++
	cmd := string(payload)
	switch {
	case strings.HasPrefix(cmd, "m"):
		var addr, n uint32
		fmt.Sscanf(cmd[1:], "%x,%x", &addr, &n)
		return []byte(rsp.EncodeHex(f.mem[addr : addr+n])), nil
	case strings.HasPrefix(cmd, "M"):
		rest := cmd[1:]
		comma := strings.IndexByte(rest, ',')
		colon := strings.IndexByte(rest, ':')
		addr, _ := strconv.ParseUint(rest[:comma], 16, 32)
		n, _ := strconv.ParseUint(rest[comma+1:colon], 16, 32)
		data, err := rsp.DecodeHex(rest[colon+1:])
		if err != nil {
			return nil, err
		}
		copy(f.mem[addr:addr+uint32(n)], data)
		return []byte("OK"), nil
	}
	return []byte("E01"), nil
}

func TestReadMemoryChunked(t *testing.T) {
	mem := make([]byte, 256)
	for i := range mem {
		mem[i] = byte(i)
	}
	f := &fakeTarget{mem: mem, maxRead: 16, maxWrite: 16}

	out := make([]byte, 100)
	if err := memio.ReadMemory(f, 10, 100, out); err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if !bytes.Equal(out, mem[10:110]) {
		t.Fatalf("ReadMemory result mismatch")
	}
	if f.calls < 100/16 {
		t.Fatalf("expected chunked reads, got %d calls", f.calls)
	}
}

func TestWriteMemoryChunked(t *testing.T) {
	mem := make([]byte, 256)
	f := &fakeTarget{mem: mem, maxRead: 16, maxWrite: 12}

	data := make([]byte, 50)
	for i := range data {
		data[i] = byte(200 + i)
	}
	if err := memio.WriteMemory(f, 20, data); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	if !bytes.Equal(mem[20:70], data) {
		t.Fatalf("WriteMemory result mismatch")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	// read_memory(a,n) must round-trip through write_memory(a,n) for all
	// chunk sizes >= 4, per §8.
	for _, chunk := range []int{4, 8, 12, 64} {
		mem := make([]byte, 128)
		f := &fakeTarget{mem: mem, maxRead: chunk, maxWrite: chunk}
		original := make([]byte, 100)
		for i := range original {
			original[i] = byte(i * 3)
		}
		if err := memio.WriteMemory(f, 0, original); err != nil {
			t.Fatalf("chunk %d: WriteMemory: %v", chunk, err)
		}
		readBack := make([]byte, 100)
		if err := memio.ReadMemory(f, 0, 100, readBack); err != nil {
			t.Fatalf("chunk %d: ReadMemory: %v", chunk, err)
		}
		if !bytes.Equal(readBack, original) {
			t.Fatalf("chunk %d: round trip mismatch", chunk)
		}
	}
}

func TestReadMemoryShortOutputBuffer(t *testing.T) {
	f := &fakeTarget{mem: make([]byte, 16), maxRead: 8, maxWrite: 8}
	out := make([]byte, 2)
	if err := memio.ReadMemory(f, 0, 10, out); err == nil {
		t.Fatal("expected an error when the output buffer is shorter than requested")
	}
}
