// Package filternames loads the -filter_names=FILE mapping of filter bit
// index to a human-readable group name (§6) and renders a filter value
// as the set of active group names, for the interactive status line.
package filternames

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RTEdbg/RTEgdbData/internal/rerr"
)

// Names holds up to 32 bit names; an empty entry means "omit" (§6).
type Names [32]string

// Load reads one name per line, top to bottom for bits 0..31. An empty
// line means that bit has no name and is omitted from Describe.
func Load(path string) (Names, error) {
	var names Names
	f, err := os.Open(path)
	if err != nil {
		return names, rerr.Wrap(rerr.KindIoError, err, fmt.Sprintf("open filter names file %s", path))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	bit := 0
	for scanner.Scan() && bit < 32 {
		names[bit] = strings.TrimRight(scanner.Text(), "\r\n")
		bit++
	}
	if err := scanner.Err(); err != nil {
		return names, rerr.Wrap(rerr.KindIoError, err, fmt.Sprintf("reading filter names file %s", path))
	}
	return names, nil
}

// Describe renders the set bits of filter as a comma-separated list of
// their names, skipping unnamed bits.
func (n Names) Describe(filter uint32) string {
	var parts []string
	for i := 0; i < 32; i++ {
		if filter&(1<<uint(i)) == 0 {
			continue
		}
		if n[i] == "" {
			continue
		}
		parts = append(parts, n[i])
	}
	return strings.Join(parts, ",")
}
