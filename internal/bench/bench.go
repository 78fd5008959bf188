// Package bench writes the speed_test.csv benchmark report (C6
// benchmark()), using gocsv.Marshal the same way
// m-lab-tcp-info/cmd/csvtool converts records to CSV, but with the
// writer's field separator switched to ';' to match the column header
// required by §4.6/§8 ("Count;Time [ms];Data transfer speed [kB/s]").
package bench

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/RTEdbg/RTEgdbData/internal/rerr"
)

func init() {
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		w := csv.NewWriter(out)
		w.Comma = ';'
		return gocsv.NewSafeCSVWriter(w)
	})
}

// Row is one line of the benchmark CSV, one per read_memory iteration.
type Row struct {
	Count    int     `csv:"Count"`
	TimeMS   float64 `csv:"Time [ms]"`
	SpeedKBs float64 `csv:"Data transfer speed [kB/s]"`
}

// Summary holds the min/max/avg throughput over all iterations.
type Summary struct {
	Iterations int
	MinKBs     float64
	MaxKBs     float64
	AvgKBs     float64
}

// Summarize computes min/max/avg throughput from rows.
func Summarize(rows []Row) Summary {
	if len(rows) == 0 {
		return Summary{}
	}
	s := Summary{Iterations: len(rows), MinKBs: rows[0].SpeedKBs, MaxKBs: rows[0].SpeedKBs}
	var total float64
	for _, r := range rows {
		if r.SpeedKBs < s.MinKBs {
			s.MinKBs = r.SpeedKBs
		}
		if r.SpeedKBs > s.MaxKBs {
			s.MaxKBs = r.SpeedKBs
		}
		total += r.SpeedKBs
	}
	s.AvgKBs = total / float64(len(rows))
	return s
}

// String renders the textual summary line appended after the CSV table.
func (s Summary) String() string {
	return fmt.Sprintf("%d iterations, min %.1f kB/s, max %.1f kB/s, avg %.1f kB/s",
		s.Iterations, s.MinKBs, s.MaxKBs, s.AvgKBs)
}

// WriteCSV writes rows as a ';'-separated CSV table followed by a blank
// line and the textual summary, per §4.6/§8.
func WriteCSV(path string, rows []Row, summary Summary) error {
	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return rerr.Wrap(rerr.KindIoError, err, "marshal benchmark CSV")
	}
	buf.WriteString("\n")
	buf.WriteString(summary.String())
	buf.WriteString("\n")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return rerr.Wrap(rerr.KindIoError, err, fmt.Sprintf("write %s", path))
	}
	return nil
}
