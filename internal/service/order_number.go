package service

import (
	"fmt"
	"strconv"
	"strings"
)

// Order numbers are date-prefixed so they sort lexically in creation
// order: PREFIX + YYYYMMDD + "-" + 4-digit per-day sequence, e.g.
// PO20250614-0003. The sequence restarts at 0001 each day.

func formatOrderNumber(dayPrefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", dayPrefix, seq)
}

// nextOrderSequence returns the sequence that follows the highest
// existing order number for the day. An empty or malformed value
// starts the day at 1.
func nextOrderSequence(maxExisting string) int {
	if maxExisting == "" {
		return 1
	}
	idx := strings.LastIndex(maxExisting, "-")
	if idx < 0 || idx == len(maxExisting)-1 {
		return 1
	}
	seq, err := strconv.Atoi(maxExisting[idx+1:])
	if err != nil || seq < 0 {
		return 1
	}
	return seq + 1
}
