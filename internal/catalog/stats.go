package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRange parses a damage range such as "12-20" or a single value "15".
// An empty string is a zero range.
func ParseRange(value string) (lo, hi int, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, nil
	}
	left, right, found := strings.Cut(value, "-")
	if !found {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("invalid range %q", value)
		}
		return n, n, nil
	}
	lo, errLo := strconv.Atoi(strings.TrimSpace(left))
	hi, errHi := strconv.Atoi(strings.TrimSpace(right))
	if errLo != nil || errHi != nil || lo < 0 || hi < lo {
		return 0, 0, fmt.Errorf("invalid range %q", value)
	}
	return lo, hi, nil
}

// ParsePercent parses a signed percent such as "+5%", "-10%" or "20".
// An empty string is zero.
func ParsePercent(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	value = strings.TrimSuffix(value, "%")
	value = strings.TrimPrefix(strings.TrimSpace(value), "+")
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid percent %q", value)
	}
	return n, nil
}

// parseFraction parses a percent into a fraction of one.
func parseFraction(value string) (float64, error) {
	n, err := ParsePercent(value)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("percent %d out of range", n)
	}
	return float64(n) / 100, nil
}
