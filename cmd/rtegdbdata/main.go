// Command rtegdbdata is the host-side CLI: connect to a GDB RSP server,
// transfer the RTEdbg log-data structure from target memory to a host
// file, and optionally stay connected in interactive mode (§6).
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RTEdbg/RTEgdbData/internal/cmdexec"
	"github.com/RTEdbg/RTEgdbData/internal/interactive"
	"github.com/RTEdbg/RTEgdbData/internal/session"
	"github.com/RTEdbg/RTEgdbData/internal/target"
	"github.com/RTEdbg/RTEgdbData/pkg/clock"
	"github.com/RTEdbg/RTEgdbData/pkg/console"
	"github.com/RTEdbg/RTEgdbData/pkg/decoder"
	"github.com/RTEdbg/RTEgdbData/pkg/filternames"
	"github.com/RTEdbg/RTEgdbData/pkg/hexutil"
	"github.com/RTEdbg/RTEgdbData/pkg/logger"
	"github.com/RTEdbg/RTEgdbData/pkg/priority"
)

// driverNames implements flag.Value for the repeatable -driver=NAME flag,
// capped at 5 occurrences (§6).
type driverNames struct{ names []string }

func (d *driverNames) String() string { return strings.Join(d.names, ",") }

func (d *driverNames) Set(v string) error {
	if len(d.names) >= 5 {
		return fmt.Errorf("-driver may be given at most 5 times")
	}
	d.names = append(d.names, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		binFile         string
		filterHex       string
		filterNamesFile string
		clear           bool
		persistent      bool
		delayMS         int
		ip              string
		logFile         string
		startScript     string
		detach          bool
		decodeFile      string
		debug           bool
		priorityFlag    bool
		drivers         driverNames
		msgsize         int
		metricsAddr     string
		nice            int
	)

	flag.StringVar(&binFile, "bin", "data.bin", "output snapshot file")
	flag.StringVar(&filterHex, "filter", "", "filter override, hex")
	flag.StringVar(&filterNamesFile, "filter_names", "", "filter bit name mapping file")
	flag.BoolVar(&clear, "clear", false, "clear circular buffer on snapshot")
	flag.BoolVar(&persistent, "p", false, "persistent (interactive) mode")
	flag.IntVar(&delayMS, "delay", 0, "pre-read delay in milliseconds")
	flag.StringVar(&ip, "ip", "127.0.0.1", "GDB server IP address")
	flag.StringVar(&logFile, "log", "", "redirect logging to file")
	flag.StringVar(&startScript, "start", "", "script to run at startup")
	flag.BoolVar(&detach, "detach", false, "send detach on cleanup")
	flag.StringVar(&decodeFile, "decode", "", "decoder batch file, invoked after snapshot")
	flag.BoolVar(&debug, "debug", false, "set the logger to debug level (RSP bytes are not logged)")
	flag.BoolVar(&priorityFlag, "priority", false, "elevate process scheduling priority")
	flag.Var(&drivers, "driver", "named helper process to elevate priority for (up to 5)")
	flag.IntVar(&msgsize, "msgsize", 0, "override max_recv_packet, [256,65535]")
	flag.StringVar(&metricsAddr, "metrics", "", "bind Prometheus metrics HTTP endpoint at ADDR")
	flag.IntVar(&nice, "nice", 0, "niceness value set by -priority (absolute, not a delta)")
	flag.Parse()

	if flag.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "usage: rtegdbdata PORT ADDR SIZE [options]")
		flag.PrintDefaults()
		return 1
	}

	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil || port < 0 || port > 65535 {
		fmt.Fprintln(os.Stderr, "PORT must be decimal 0-65535")
		return 1
	}
	addr, err := hexutil.ParseUint32(flag.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, "ADDR:", err)
		return 1
	}
	size, err := hexutil.ParseUint32(flag.Arg(2))
	if err != nil {
		fmt.Fprintln(os.Stderr, "SIZE:", err)
		return 1
	}

	// -filter=0 is a meaningful explicit override, distinct from "not given"
	// (§3, §4.6 restore_filter precedence), so look at what was actually set.
	var userFilter *uint32
	filterExplicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "filter" {
			filterExplicit = true
		}
	})
	if filterExplicit {
		v, err := hexutil.ParseUint32(filterHex)
		if err != nil {
			fmt.Fprintln(os.Stderr, "-filter:", err)
			return 1
		}
		userFilter = &v
	}

	log := logger.New()
	log.SetDebug(debug)
	if logFile != "" {
		if err := log.RedirectToFile(logFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer log.Close()
	}

	if priorityFlag {
		if err := priority.Elevate(nice); err != nil {
			log.Log("priority elevation failed: %v", err)
		}
		defer priority.Restore()
		for _, perr := range priority.ElevateNamed(nice, drivers.names) {
			log.Log("driver priority elevation: %v", perr)
		}
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Log("metrics server stopped: %v", err)
			}
		}()
	}

	var filterNames filternames.Names
	hasFilterNames := false
	if filterNamesFile != "" {
		fn, err := filternames.Load(filterNamesFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "-filter_names:", err)
			return 1
		}
		filterNames = fn
		hasFilterNames = true
	}

	clk := clock.New()

	connect := func() (*session.Session, error) {
		return session.Connect(ip, port, session.Options{
			Logger:             log,
			RecvPacketOverride: msgsize,
			DetachOnCleanup:    detach,
		})
	}

	sess, err := connect()
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		return 1
	}
	defer sess.Cleanup()

	ctrl := target.New(sess, log, clk, addr, size, userFilter, clear, time.Duration(delayMS)*time.Millisecond)

	hooks := cmdexec.MetaHooks{
		SetFilter: func(v uint32) error {
			ctrl.UserFilter = &v
			// RestoreFilter ignores its argument once UserFilter is set.
			return ctrl.RestoreFilter(0)
		},
		InitStructure: ctrl.InitializeStructure,
	}
	executor := cmdexec.New(sess, log, clk, hooks)

	if startScript != "" {
		if err := executor.RunScript(startScript); err != nil {
			fmt.Fprintln(os.Stderr, "-start script:", err)
			return 1
		}
	}

	if !persistent {
		if err := ctrl.Snapshot(binFile); err != nil {
			fmt.Fprintln(os.Stderr, "snapshot:", err)
			return 1
		}
		fmt.Println("snapshot written to", binFile)
		if decodeFile != "" {
			out, err := decoder.Run(decodeFile, binFile)
			if err != nil {
				log.Log("decoder invocation failed: %v", err)
			} else if len(out) > 0 {
				fmt.Println(string(out))
			}
		}
		return 0
	}

	con := console.New()
	loop := interactive.New(ctrl, executor, sess, con, clk, log, interactive.Options{
		DecodeFile:     decodeFile,
		StartScript:    startScript,
		BinFile:        binFile,
		FilterNames:    filterNames,
		HasFilterNames: hasFilterNames,
		Reconnect: func() error {
			sess.Cleanup()
			newSess, err := connect()
			if err != nil {
				return err
			}
			*sess = *newSess
			return nil
		},
	})

	if err := loop.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
