package bench_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RTEdbg/RTEgdbData/internal/bench"
)

func TestSummarize(t *testing.T) {
	rows := []bench.Row{
		{Count: 1, TimeMS: 10, SpeedKBs: 100},
		{Count: 2, TimeMS: 5, SpeedKBs: 200},
		{Count: 3, TimeMS: 20, SpeedKBs: 50},
	}
	s := bench.Summarize(rows)
	if s.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", s.Iterations)
	}
	if s.MinKBs != 50 || s.MaxKBs != 200 {
		t.Errorf("min/max = %v/%v, want 50/200", s.MinKBs, s.MaxKBs)
	}
	if got, want := s.AvgKBs, (100.0+200.0+50.0)/3.0; got != want {
		t.Errorf("AvgKBs = %v, want %v", got, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := bench.Summarize(nil)
	if s.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", s.Iterations)
	}
}

func TestWriteCSVSemicolonSeparated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speed_test.csv")
	rows := []bench.Row{{Count: 1, TimeMS: 1.5, SpeedKBs: 900.25}}
	summary := bench.Summarize(rows)
	if err := bench.WriteCSV(path, rows, summary); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "Count;Time [ms];Data transfer speed [kB/s]") {
		t.Fatalf("missing expected semicolon-separated header, got:\n%s", text)
	}
	if !strings.Contains(text, summary.String()) {
		t.Fatalf("missing summary line, got:\n%s", text)
	}
}
