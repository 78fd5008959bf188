package filternames_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RTEdbg/RTEgdbData/pkg/filternames"
)

func TestLoadAndDescribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.txt")
	content := "uart\ncan\n\nadc\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write names file: %v", err)
	}

	names, err := filternames.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := names.Describe(0b1011) // bits 0,1,3 set: uart, can, adc
	want := "uart,can,adc"
	if got != want {
		t.Fatalf("Describe(0b1011) = %q, want %q", got, want)
	}

	// Bit 2 has an empty name and must be omitted even when set.
	got = names.Describe(0b0111)
	want = "uart,can"
	if got != want {
		t.Fatalf("Describe(0b0111) = %q, want %q", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := filternames.Load("/nonexistent/path/names.txt"); err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}
