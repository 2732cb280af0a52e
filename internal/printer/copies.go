package printer

import (
	"regexp"
	"strconv"
)

// Copy count bounds.
const (
	MinCopies = 1
	MaxCopies = 10
)

var copiesPattern = regexp.MustCompile(`^\s*(\d+)`)

// ParseCopies reads the copy count that follows the print command. A missing,
// non-numeric or sub-1 count means one copy; counts over MaxCopies are capped
// and reported through capped.
func ParseCopies(arg string) (copies int, capped bool) {
	m := copiesPattern.FindStringSubmatch(arg)
	if m == nil {
		return MinCopies, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Only overflow gets here; treat it like any other oversized count.
		return MaxCopies, true
	}
	if n > MaxCopies {
		return MaxCopies, true
	}
	return ClampCopies(n), false
}

// ClampCopies forces n into [MinCopies, MaxCopies].
func ClampCopies(n int) int {
	switch {
	case n < MinCopies:
		return MinCopies
	case n > MaxCopies:
		return MaxCopies
	default:
		return n
	}
}
