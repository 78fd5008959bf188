// Package hexutil provides the CLI-facing hex<->binary formatting helpers
// (ADDR, SIZE, -filter) that are out of scope for the RSP client core; it
// is intentionally tiny and stdlib-only (see DESIGN.md).
package hexutil

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseUint32 parses a hex string (with or without a leading "0x") into a
// uint32, as used for ADDR, SIZE and -filter CLI arguments.
func ParseUint32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %q: %w", s, err)
	}
	return uint32(v), nil
}

// FormatUint32 renders v as a "0x%08X" string for status display.
func FormatUint32(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}
