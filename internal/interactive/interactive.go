// Package interactive implements C7: the persistent-mode key-dispatch
// loop that drives Target Control (internal/target) and the Command
// Executor (internal/cmdexec), polling the keyboard roughly every 50ms
// and refreshing a status line roughly every 350ms (§4.7). The dispatch
// shape — draining unsolicited frames before each action, then acting on
// a single buffered input event — mirrors the single-actor channel
// dispatch loop in aykevl-emculator's gdbHandle/gdbRecvPackets, adapted
// from "one packet at a time from the network" to "one key at a time
// from the console".
package interactive

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RTEdbg/RTEgdbData/internal/cmdexec"
	"github.com/RTEdbg/RTEgdbData/internal/rerr"
	"github.com/RTEdbg/RTEgdbData/internal/target"
	"github.com/RTEdbg/RTEgdbData/pkg/clock"
	"github.com/RTEdbg/RTEgdbData/pkg/console"
	"github.com/RTEdbg/RTEgdbData/pkg/decoder"
	"github.com/RTEdbg/RTEgdbData/pkg/filternames"
	"github.com/RTEdbg/RTEgdbData/pkg/hexutil"
	"github.com/RTEdbg/RTEgdbData/pkg/logger"
)

const (
	keyPollInterval    = 50 * time.Millisecond
	statusRefreshEvery = 350 * time.Millisecond
)

// Draining is the subset of *session.Session the loop needs directly
// (everything else goes through Controller/Executor).
type Draining interface {
	DrainUnsolicited()
	LastError() error
}

// Options configures the loop's optional behaviors (§6 CLI options).
type Options struct {
	DecodeFile     string // -decode=FILE
	StartScript    string // -start=FILE
	BinFile        string // -bin=FILE, passed to the decoder on Space
	FilterNames    filternames.Names
	HasFilterNames bool
	Reconnect      func() error
}

// Loop is the interactive-mode key-dispatch actor.
type Loop struct {
	ctrl    *target.Controller
	exec    *cmdexec.Executor
	sess    Draining
	console console.Console
	clk     clock.Clock
	log     logger.Sink
	opts    Options

	fileLoggingOn bool
}

// New builds a Loop.
func New(ctrl *target.Controller, exec *cmdexec.Executor, sess Draining, con console.Console, clk clock.Clock, log logger.Sink, opts Options) *Loop {
	return &Loop{ctrl: ctrl, exec: exec, sess: sess, console: con, clk: clk, log: log, opts: opts, fileLoggingOn: true}
}

func (l *Loop) logf(format string, args ...any) {
	if l.log != nil {
		l.log.Log(format, args...)
	}
}

// Run executes the interactive loop until the user confirms exit (Esc
// then 'Y'). An error from an action is logged and printed, and the loop
// keeps running; Run itself returns nil.
func (l *Loop) Run() error {
	fmt.Println("Interactive mode. Press '?' for help.")
	lastStatus := time.Time{}
	for {
		l.sess.DrainUnsolicited()

		if key, ok := l.console.PollKey(); ok {
			exit, err := l.dispatch(key)
			if err != nil {
				l.logf("interactive: %v", err)
				fmt.Println("error:", err)
				if k := rerr.KindOf(err); k == rerr.KindConnectionClosed || k == rerr.KindSocketError {
					fmt.Println("connection lost; press 'R' to reconnect")
				}
			}
			if exit {
				return nil
			}
		}

		if l.clk.Now().Sub(lastStatus) >= statusRefreshEvery {
			l.printStatus()
			lastStatus = l.clk.Now()
		}

		l.clk.Sleep(keyPollInterval)
	}
}

func (l *Loop) printStatus() {
	h := l.ctrl.Header()
	line := fmt.Sprintf("last_index=%d filter=%s", h.LastIndex, hexutil.FormatUint32(h.Filter))
	if l.opts.HasFilterNames {
		if desc := l.opts.FilterNames.Describe(h.Filter); desc != "" {
			line += fmt.Sprintf(" (%s)", desc)
		}
	}
	if h.RteCfg.SingleShotActive() && h.BufferSize > 0 {
		fillPct := float64(h.LastIndex) * 100.0 / float64(h.BufferSize)
		line += fmt.Sprintf(" fill=%.1f%%", fillPct)
	}
	if err := l.sess.LastError(); err != nil {
		line += fmt.Sprintf(" last_error=%v", err)
	}
	fmt.Println(line)
}

func (l *Loop) printHelp() {
	fmt.Print(`
  ?        print this help
  Space    snapshot (pause/read/restore); invokes -decode on success
  F        prompt and set a new filter value
  S        switch to single-shot mode
  P        switch to post-mortem mode
  H        reload and print the header
  B        run the memory-read benchmark
  L        toggle file logging
  0        re-run the -start script
  1-9      run N.cmd
  R        reconnect to the GDB server
  Esc      exit (confirm with Y)
`)
}

// dispatch executes the action for one keypress, returning exit=true
// when the loop should terminate.
func (l *Loop) dispatch(key rune) (exit bool, err error) {
	switch key {
	case '?':
		l.printHelp()
	case ' ':
		return false, l.doSnapshot()
	case 'F', 'f':
		return false, l.doSetFilter()
	case 'S', 's':
		return false, l.ctrl.SwitchToSingleShot()
	case 'P', 'p':
		return false, l.ctrl.SwitchToPostMortem()
	case 'H', 'h':
		if err := l.ctrl.LoadHeader(); err != nil {
			return false, err
		}
		h := l.ctrl.Header()
		fmt.Printf("last_index=%d filter=%s rte_cfg=%s buffer_size=%d timestamp_frequency=%d\n",
			h.LastIndex, hexutil.FormatUint32(h.Filter), hexutil.FormatUint32(uint32(h.RteCfg)), h.BufferSize, h.TimestampFrequency)
	case 'B', 'b':
		_, err := l.ctrl.Benchmark("speed_test.csv", l.keyInterruptsBenchmark)
		return false, err
	case 'L', 'l':
		l.fileLoggingOn = !l.fileLoggingOn
		if lg, ok := l.log.(interface{ Enable(bool) }); ok {
			lg.Enable(l.fileLoggingOn)
		}
		fmt.Println("file logging:", l.fileLoggingOn)
	case '0':
		if l.opts.StartScript == "" {
			fmt.Println("no -start script configured")
			return false, nil
		}
		return false, l.exec.RunScript(l.opts.StartScript)
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return false, l.exec.RunScript(strconv.Itoa(int(key-'0')) + ".cmd")
	case 'R', 'r':
		if l.opts.Reconnect == nil {
			fmt.Println("reconnect is not configured for this session")
			return false, nil
		}
		return false, l.opts.Reconnect()
	case 27: // Esc
		line, _ := l.console.ReadLine("Exit? (Y to confirm): ")
		if strings.EqualFold(strings.TrimSpace(line), "Y") {
			return true, nil
		}
	default:
		fmt.Println("Unknown command")
	}
	return false, nil
}

func (l *Loop) doSnapshot() error {
	if err := l.ctrl.Snapshot(l.opts.BinFile); err != nil {
		return err
	}
	fmt.Println("snapshot written to", l.opts.BinFile)
	if l.opts.DecodeFile != "" {
		out, err := decoder.Run(l.opts.DecodeFile, l.opts.BinFile)
		if err != nil {
			l.logf("decoder invocation failed: %v", err)
			return nil
		}
		if len(out) > 0 {
			fmt.Println(string(out))
		}
	}
	return nil
}

func (l *Loop) doSetFilter() error {
	line, err := l.console.ReadLine("New filter (hex, Enter = keep current parameter): ")
	if err != nil {
		return err
	}
	line = strings.TrimSpace(line)
	if line != "" {
		v, perr := hexutil.ParseUint32(line)
		if perr != nil {
			return perr
		}
		l.ctrl.UserFilter = &v
		// RestoreFilter ignores its argument once UserFilter is set.
		return l.ctrl.RestoreFilter(0)
	}
	cur, err := l.ctrl.CurrentFilter()
	if err != nil {
		return err
	}
	return l.ctrl.RestoreFilter(cur)
}

// keyInterruptsBenchmark is passed to Controller.Benchmark so a keypress
// during the run aborts it early (§4.6, §5).
func (l *Loop) keyInterruptsBenchmark() bool {
	_, ok := l.console.PollKey()
	return ok
}
