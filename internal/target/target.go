// Package target implements C6: the higher-level operations against the
// embedded target's header+circular-buffer structure — load/validate,
// pause/restore filter, buffer reset, the pause/read/restore snapshot
// sequence, mode switches, structure initialization and the benchmark.
// It is built on internal/memio the way the teacher's machine.go sits on
// top of its raw C memory-access primitives: a thin higher-level façade
// over segmented reads/writes, generalized here to the RTEdbg target
// structure instead of CPU registers.
package target

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/RTEdbg/RTEgdbData/internal/bench"
	"github.com/RTEdbg/RTEgdbData/internal/memio"
	"github.com/RTEdbg/RTEgdbData/internal/metrics"
	"github.com/RTEdbg/RTEgdbData/internal/rerr"
	"github.com/RTEdbg/RTEgdbData/internal/rtelog"
	"github.com/RTEdbg/RTEgdbData/pkg/clock"
	"github.com/RTEdbg/RTEgdbData/pkg/logger"
)

// BenchmarkDuration and BenchmarkRepeatCount bound the benchmark() loop
// (§4.6).
const (
	BenchmarkDuration    = 20 * time.Second
	BenchmarkRepeatCount = 1000
)

// Controller implements the target-state operations of §4.6 against a
// memio.Requester (normally a *session.Session).
type Controller struct {
	sess memio.Requester
	log  logger.Sink
	clk  clock.Clock

	StartAddress   uint32
	Size           uint32 // total size in bytes; 0 means "derive from header"
	UserFilter     *uint32
	ClearRequested bool
	PreReadDelay   time.Duration

	header rtelog.Header
	mirror []byte
}

// New builds a Controller. size may be 0, meaning "read buffer_size from
// the target header" (CLI SIZE=0, §6).
func New(sess memio.Requester, log logger.Sink, clk clock.Clock, startAddr, size uint32, userFilter *uint32, clear bool, preReadDelay time.Duration) *Controller {
	return &Controller{
		sess:           sess,
		log:            log,
		clk:            clk,
		StartAddress:   startAddr,
		Size:           size,
		UserFilter:     userFilter,
		ClearRequested: clear,
		PreReadDelay:   preReadDelay,
	}
}

func (c *Controller) logf(format string, args ...any) {
	if c.log != nil {
		c.log.Log(format, args...)
	}
}

// Header returns the most recently loaded header.
func (c *Controller) Header() rtelog.Header { return c.header }

// LoadHeader reads the header from the target and (re)computes the total
// transfer size, reallocating the mirror buffer when the size changes
// (§4.6 load_header).
func (c *Controller) LoadHeader() error {
	buf := make([]byte, rtelog.HeaderSize)
	if err := memio.ReadMemory(c.sess, c.StartAddress, rtelog.HeaderSize, buf); err != nil {
		return err
	}
	h, err := rtelog.Decode(buf)
	if err != nil {
		return rerr.Wrap(rerr.KindInvalidHeader, err, "load_header: decode")
	}
	total := h.TotalSize()
	switch {
	case c.Size == 0:
		c.logf("size not specified; using buffer_size from header (%d bytes)", total)
	case c.Size != total:
		c.logf("configured size %d does not match header-derived size %d; using header value", c.Size, total)
	}
	c.Size = total
	if c.Size < rtelog.MinTotalSize || c.Size > rtelog.MaxTotalSize {
		return rerr.Newf(rerr.KindSizeOutOfRange, "total size %d out of range [%d,%d]", c.Size, rtelog.MinTotalSize, rtelog.MaxTotalSize)
	}
	if len(c.mirror) != int(c.Size) {
		c.mirror = make([]byte, c.Size)
	}
	c.header = h
	return nil
}

// ValidateHeader checks the structural invariants of §3/§4.6.
func (c *Controller) ValidateHeader() error {
	if err := c.header.Validate(); err != nil {
		return rerr.Wrap(rerr.KindInvalidHeader, err, "validate_header")
	}
	return nil
}

// PauseLogging writes four zero bytes to the filter word.
func (c *Controller) PauseLogging() error {
	return memio.WriteMemory(c.sess, c.StartAddress+4, []byte{0, 0, 0, 0})
}

func (c *Controller) readFilter() (uint32, error) {
	buf := make([]byte, 4)
	if err := memio.ReadMemory(c.sess, c.StartAddress+4, 4, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// CurrentFilter reads the live filter word, for callers (the interactive
// loop's 'F' key) that need the pre-restore baseline value.
func (c *Controller) CurrentFilter() (uint32, error) {
	return c.readFilter()
}

func (c *Controller) writeFilter(v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return memio.WriteMemory(c.sess, c.StartAddress+4, buf)
}

// CheckFilterZero reads the filter and reports if the firmware turned it
// back on during a transfer (§4.6, §9(c)).
func (c *Controller) CheckFilterZero() error {
	v, err := c.readFilter()
	if err != nil {
		return err
	}
	if v != 0 {
		c.logf("firmware re-enabled filter during transfer; data may be partially corrupt (filter=0x%08X)", v)
		return rerr.Newf(rerr.KindBadResponse, "firmware re-enabled filter during transfer; data may be partially corrupt (filter=0x%08X)", v)
	}
	return nil
}

// RestoreFilter writes the filter value chosen by the precedence in
// §4.6: an explicit user override, else filter_copy when the firmware
// turned logging off itself and is allowed to, else the pre-pause value.
func (c *Controller) RestoreFilter(oldFilter uint32) error {
	var newFilter uint32
	switch {
	case c.UserFilter != nil:
		newFilter = *c.UserFilter
	case oldFilter == 0 && c.header.RteCfg.FirmwareOffAllowed():
		newFilter = c.header.FilterCopy
	default:
		newFilter = oldFilter
	}
	return c.writeFilter(newFilter)
}

// ResetCircularBuffer clears the buffer region when requested, zeroes
// last_index when single-shot was active, or does nothing otherwise
// (§4.6).
func (c *Controller) ResetCircularBuffer() error {
	if c.ClearRequested {
		n := int(c.header.BufferSize) * 4
		ff := make([]byte, n)
		for i := range ff {
			ff[i] = 0xFF
		}
		if err := memio.WriteMemory(c.sess, c.StartAddress+rtelog.HeaderSize, ff); err != nil {
			return err
		}
		return c.zeroLastIndex()
	}
	if c.header.RteCfg.SingleShotActive() {
		return c.zeroLastIndex()
	}
	return nil
}

func (c *Controller) zeroLastIndex() error {
	return memio.WriteMemory(c.sess, c.StartAddress, []byte{0, 0, 0, 0})
}

func (c *Controller) writeRteCfg(cfg rtelog.RteCfg) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(cfg))
	return memio.WriteMemory(c.sess, c.StartAddress+8, buf)
}

// Snapshot runs the pause/read/restore sequence described in §4.6 and
// writes the resulting image to outputPath. Any failure in the
// load/validate/read/check/reset steps triggers a best-effort
// RestoreFilter before returning.
func (c *Controller) Snapshot(outputPath string) (err error) {
	startTime := c.clk.Now()
	defer func() {
		metrics.SnapshotDuration.Observe(c.clk.Now().Sub(startTime).Seconds())
	}()

	oldFilter, err := c.readFilter()
	if err != nil {
		return err
	}
	if oldFilter != 0 {
		if err = c.PauseLogging(); err != nil {
			return err
		}
	}

	restoreNeeded := true
	defer func() {
		if restoreNeeded {
			if rerr2 := c.RestoreFilter(oldFilter); rerr2 != nil {
				c.logf("snapshot: best-effort restore_filter failed: %v", rerr2)
			}
		}
	}()

	if err = c.LoadHeader(); err != nil {
		return err
	}
	if err = c.ValidateHeader(); err != nil {
		return err
	}
	if c.PreReadDelay > 0 {
		c.clk.Sleep(c.PreReadDelay)
	}
	if err = memio.ReadMemory(c.sess, c.StartAddress, int(c.Size), c.mirror); err != nil {
		return err
	}
	if err = c.CheckFilterZero(); err != nil {
		return err
	}
	if err = c.ResetCircularBuffer(); err != nil {
		return err
	}
	if err = c.RestoreFilter(oldFilter); err != nil {
		return err
	}
	restoreNeeded = false

	return c.writeOutputFile(outputPath, oldFilter)
}

// writeOutputFile writes the mirror buffer to path, overlaying the
// filter word with the pre-pause value so the persisted snapshot shows
// logging as it was (§3, §8).
func (c *Controller) writeOutputFile(path string, oldFilter uint32) error {
	out := append([]byte(nil), c.mirror...)
	binary.LittleEndian.PutUint32(out[4:8], oldFilter)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return rerr.Wrap(rerr.KindIoError, err, fmt.Sprintf("write output file %s", path))
	}
	return nil
}

// SwitchToSingleShot refuses if single-shot is not compile-enabled,
// otherwise pauses, sets rte_cfg bit 0, resets the buffer and restores
// the filter (§4.6).
func (c *Controller) SwitchToSingleShot() error {
	if err := c.LoadHeader(); err != nil {
		return err
	}
	if err := c.ValidateHeader(); err != nil {
		return err
	}
	if !c.header.RteCfg.SingleShotCompileEnabled() {
		return rerr.New(rerr.KindInvalidHeader, "single-shot mode is not compile-enabled on this target")
	}
	oldFilter, err := c.readFilter()
	if err != nil {
		return err
	}
	if oldFilter != 0 {
		if err := c.PauseLogging(); err != nil {
			return err
		}
	}
	newCfg := c.header.RteCfg.WithSingleShot(true)
	if err := c.writeRteCfg(newCfg); err != nil {
		return err
	}
	c.header.RteCfg = newCfg
	if err := c.ResetCircularBuffer(); err != nil {
		return err
	}
	return c.RestoreFilter(oldFilter)
}

// SwitchToPostMortem pauses, clears rte_cfg bit 0 if single-shot was
// active, resets the buffer and restores the filter (§4.6).
func (c *Controller) SwitchToPostMortem() error {
	if err := c.LoadHeader(); err != nil {
		return err
	}
	if err := c.ValidateHeader(); err != nil {
		return err
	}
	oldFilter, err := c.readFilter()
	if err != nil {
		return err
	}
	if oldFilter != 0 {
		if err := c.PauseLogging(); err != nil {
			return err
		}
	}
	if c.header.RteCfg.SingleShotActive() {
		newCfg := c.header.RteCfg.WithSingleShot(false)
		if err := c.writeRteCfg(newCfg); err != nil {
			return err
		}
		c.header.RteCfg = newCfg
	}
	if err := c.ResetCircularBuffer(); err != nil {
		return err
	}
	return c.RestoreFilter(oldFilter)
}

// InitializeStructure builds and writes a fresh header when the target
// firmware omits its own init routine (§4.6).
func (c *Controller) InitializeStructure(cfgWord, tsFreq uint32) error {
	if tsFreq == 0 {
		return rerr.New(rerr.KindBadInput, "initialize_structure: timestamp_frequency must be non-zero")
	}
	if c.Size == 0 {
		return rerr.New(rerr.KindBadInput, "initialize_structure: size must be non-zero")
	}
	if c.Size < rtelog.MinTotalSize || c.Size > rtelog.MaxTotalSize {
		return rerr.Newf(rerr.KindSizeOutOfRange, "initialize_structure: size %d out of range [%d,%d]", c.Size, rtelog.MinTotalSize, rtelog.MaxTotalSize)
	}

	var userFilter uint32
	if c.UserFilter != nil {
		userFilter = *c.UserFilter
	}

	h := rtelog.Header{
		LastIndex:          0,
		Filter:             0,
		RteCfg:             rtelog.RteCfg(cfgWord),
		TimestampFrequency: tsFreq,
		FilterCopy:         userFilter,
		BufferSize:         (c.Size - rtelog.HeaderSize) / 4,
	}

	if err := c.PauseLogging(); err != nil {
		return err
	}
	if err := memio.WriteMemory(c.sess, c.StartAddress, h.Encode()); err != nil {
		return err
	}
	c.header = h
	if len(c.mirror) != int(c.Size) {
		c.mirror = make([]byte, c.Size)
	}
	if err := c.ResetCircularBuffer(); err != nil {
		return err
	}
	if userFilter != 0 {
		if err := c.writeFilter(userFilter); err != nil {
			return err
		}
	}
	return nil
}

// Benchmark repeatedly reads the target memory image, recording
// per-read timing, until BenchmarkDuration or BenchmarkRepeatCount is
// reached or keyPressed reports a keypress (§4.6). keyPressed may be
// nil.
func (c *Controller) Benchmark(csvPath string, keyPressed func() bool) (bench.Summary, error) {
	if c.Size == 0 {
		return bench.Summary{}, rerr.New(rerr.KindBadInput, "benchmark: size must be non-zero")
	}
	buf := make([]byte, c.Size)
	var rows []bench.Row
	deadline := c.clk.Now().Add(BenchmarkDuration)

	for count := 1; count <= BenchmarkRepeatCount; count++ {
		if c.clk.Now().After(deadline) {
			break
		}
		if keyPressed != nil && keyPressed() {
			break
		}
		iterStart := c.clk.Now()
		if err := memio.ReadMemory(c.sess, c.StartAddress, int(c.Size), buf); err != nil {
			return bench.Summary{}, err
		}
		elapsed := c.clk.Now().Sub(iterStart)
		timeMS := float64(elapsed.Microseconds()) / 1000.0
		var speedKBs float64
		if elapsed > 0 {
			speedKBs = (float64(c.Size) / 1024.0) / elapsed.Seconds()
		}
		rows = append(rows, bench.Row{Count: count, TimeMS: timeMS, SpeedKBs: speedKBs})
		metrics.BenchmarkThroughputKBs.Observe(speedKBs)
	}

	summary := bench.Summarize(rows)
	if err := bench.WriteCSV(csvPath, rows, summary); err != nil {
		return summary, err
	}
	c.logf("benchmark: %s", summary.String())
	return summary, nil
}
