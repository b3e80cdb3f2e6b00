// Package utils holds small helpers shared across layers, free of any
// domain logic.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not a
// plain integer. No trimming: " 42" is not an int.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampLimit turns a raw ?limit query value into a usable feed page size:
// def when absent or unparsable, floored at 1, capped at max. Feeds are
// unpaginated lists ordered by urgency, so the cap is the only thing
// standing between a greedy client and the whole post collection.
func ClampLimit(raw string, def, max int) int {
	n := AtoiDefault(raw, def)
	if n < 1 {
		n = 1
	}
	if n > max {
		n = max
	}
	return n
}
