package resolver

import (
	"fmt"
	"strconv"
	"strings"
)

// CodeWidth is the width numeric legacy codes are padded to ("2" -> "002").
const CodeWidth = 3

// NormalizeCode strips leading zeros from numeric codes and re-pads them to CodeWidth.
// Non-numeric codes are trimmed and upper-cased.
func NormalizeCode(code string) string {
	c := strings.TrimSpace(code)
	if c == "" {
		return ""
	}
	if !isDigits(c) {
		return strings.ToUpper(c)
	}

	c = strings.TrimLeft(c, "0")
	if c == "" {
		c = "0"
	}
	if len(c) < CodeWidth {
		c = strings.Repeat("0", CodeWidth-len(c)) + c
	}
	return c
}

// PadCode renders a position or numeric id as a legacy code.
func PadCode(n int) string {
	return fmt.Sprintf("%0*d", CodeWidth, n)
}

// SameID compares surrogate ids: numerically when both sides parse as numbers,
// otherwise as trimmed strings.
func SameID(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}

	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return na == nb
	}
	return a == b
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
