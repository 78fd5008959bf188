// Package cmdexec implements C5: executing arbitrary RSP command text and
// running user-supplied script files, including the "#"-prefixed local
// meta-commands described in §4.5. Meta-commands that mutate target state
// (#filter, #init) are wired through MetaHooks rather than importing
// internal/target directly; the CLI entry point binds the hooks to a
// target.Controller, so neither package imports the other.
package cmdexec

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/RTEdbg/RTEgdbData/internal/rerr"
	"github.com/RTEdbg/RTEgdbData/internal/rsp"
	"github.com/RTEdbg/RTEgdbData/pkg/clock"
	"github.com/RTEdbg/RTEgdbData/pkg/hexutil"
	"github.com/RTEdbg/RTEgdbData/pkg/logger"
)

const defaultTimeout = 500 * time.Millisecond

// Requester is the subset of *session.Session the executor needs.
type Requester interface {
	Request(payload []byte, timeout time.Duration) ([]byte, error)
	RecvWithTimeout(timeout time.Duration) ([]byte, error)
	TrailingConsoleWindow() time.Duration
	DrainUnsolicited()
}

// MetaHooks supplies the Target Control operations invoked by the
// #filter and #init script meta-commands.
type MetaHooks struct {
	SetFilter     func(filter uint32) error
	InitStructure func(cfgWord, tsFreq uint32) error
}

// Executor executes RSP commands and script files against a Requester.
type Executor struct {
	s     Requester
	log   logger.Sink
	clk   clock.Clock
	hooks MetaHooks
}

// New builds an Executor.
func New(s Requester, log logger.Sink, clk clock.Clock, hooks MetaHooks) *Executor {
	return &Executor{s: s, log: log, clk: clk, hooks: hooks}
}

func (e *Executor) logf(format string, args ...any) {
	if e.log != nil {
		e.log.Log(format, args...)
	}
}

// Result classifies the outcome of Execute.
type Result struct {
	OK      bool
	Console []string // decoded console-output lines, in order
}

// Execute frames command, sends it, and classifies the reply per §4.5:
// $OK# is success; a chain of $O<hex>...# console-output frames is
// decoded and logged, continuing to read chained frames up to the
// trailing console window before the final reply; $E...# is an error;
// anything else is logged, the socket is drained, and BadResponse is
// returned.
func (e *Executor) Execute(command string) (Result, error) {
	reply, err := e.s.Request([]byte(command), defaultTimeout)
	if err != nil {
		return Result{}, err
	}
	return e.classifyChain(reply)
}

func (e *Executor) classifyChain(reply []byte) (Result, error) {
	var res Result
	for {
		if string(reply) == "OK" {
			res.OK = true
			return res, nil
		}
		if text, isErr := rsp.IsErrorReply(reply); isErr {
			return res, rerr.Newf(rerr.KindGdbReported, "command error: %s", text).WithBytes(reply)
		}
		if len(reply) > 0 && reply[0] == 'O' {
			line, err := rsp.DecodeHex(string(reply[1:]))
			if err != nil {
				return res, rerr.Wrap(rerr.KindBadResponse, err, "decoding console output").WithBytes(reply)
			}
			text := strings.ReplaceAll(string(line), "\n", " ")
			res.Console = append(res.Console, text)
			e.logf("console: %s", text)
			next, err := e.s.RecvWithTimeout(e.s.TrailingConsoleWindow())
			if err != nil {
				// No further chained frame arrived in the trailing
				// window; treat the console output itself as success.
				res.OK = true
				return res, nil
			}
			reply = next
			continue
		}
		e.logf("command reply not recognized, draining: %q", reply)
		e.s.DrainUnsolicited()
		return res, rerr.Newf(rerr.KindBadResponse, "unrecognized reply %q", reply).WithBytes(reply)
	}
}

// RunScript executes a UTF-8 script file line by line per §4.5/§6: blank
// lines are skipped, "##" lines are comments, "#"-prefixed lines are
// local meta-commands, everything else is sent verbatim as an RSP
// command. A failed Execute aborts the script; a failed meta-command
// logs and continues.
func (e *Executor) RunScript(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return rerr.Wrap(rerr.KindIoError, err, fmt.Sprintf("open script %s", path))
	}
	defer f.Close()

	e.s.DrainUnsolicited()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if err := e.runMeta(line); err != nil {
				e.logf("meta-command %q failed: %v", line, err)
			}
			continue
		}
		if _, err := e.Execute(line); err != nil {
			return rerr.Wrap(rerr.KindBadResponse, err, fmt.Sprintf("script %s: command %q failed", path, line))
		}
	}
	if err := scanner.Err(); err != nil {
		return rerr.Wrap(rerr.KindIoError, err, fmt.Sprintf("reading script %s", path))
	}
	return nil
}

func (e *Executor) runMeta(line string) error {
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return rerr.New(rerr.KindBadInput, "empty meta-command")
	}
	switch strings.ToLower(fields[0]) {
	case "delay":
		if len(fields) != 2 {
			return rerr.New(rerr.KindBadInput, "#delay requires one argument (ms)")
		}
		ms, err := strconv.Atoi(fields[1])
		if err != nil || ms < 0 {
			return rerr.Newf(rerr.KindBadInput, "#delay: bad duration %q", fields[1])
		}
		e.clk.Sleep(time.Duration(ms) * time.Millisecond)
		e.s.DrainUnsolicited()
		return nil
	case "echo":
		fmt.Println(strings.TrimSpace(line[len("#echo"):]))
		return nil
	case "filter":
		if len(fields) != 2 {
			return rerr.New(rerr.KindBadInput, "#filter requires one hex argument")
		}
		v, err := hexutil.ParseUint32(fields[1])
		if err != nil {
			return err
		}
		if e.hooks.SetFilter == nil {
			return rerr.New(rerr.KindBadInput, "#filter: no SetFilter hook configured")
		}
		return e.hooks.SetFilter(v)
	case "init":
		if len(fields) != 3 {
			return rerr.New(rerr.KindBadInput, "#init requires CFG_HEX and FREQ_DEC")
		}
		cfg, err := hexutil.ParseUint32(fields[1])
		if err != nil {
			return err
		}
		freq, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return rerr.Newf(rerr.KindBadInput, "#init: bad frequency %q", fields[2])
		}
		if e.hooks.InitStructure == nil {
			return rerr.New(rerr.KindBadInput, "#init: no InitStructure hook configured")
		}
		return e.hooks.InitStructure(cfg, uint32(freq))
	default:
		return rerr.Newf(rerr.KindBadInput, "unknown meta-command %q", fields[0])
	}
}
