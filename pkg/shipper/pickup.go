package shipper

import (
	"fmt"
	"strconv"
	"strings"
)

const lastMinute = 23*60 + 59

// PickupWindow clamps a HH:MM pickup window to the same day and makes sure
// the end is not before the start. An empty end means end of day.
func PickupWindow(minHour, maxHour string) (string, string, error) {
	lo, err := parseClock(minHour, 0)
	if err != nil {
		return "", "", err
	}
	hi, err := parseClock(maxHour, lastMinute)
	if err != nil {
		return "", "", err
	}
	lo = clampMinutes(lo)
	hi = clampMinutes(hi)
	if hi < lo {
		hi = lo
	}
	return formatClock(lo), formatClock(hi), nil
}

func parseClock(s string, fallback int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	h, m, ok := strings.Cut(s, ":")
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0, NewValidationError("INVALID_HOUR", fmt.Sprintf("invalid hour %q", s))
	}
	minutes := 0
	if ok {
		minutes, err = strconv.Atoi(m)
		if err != nil || minutes < 0 || minutes > 59 {
			return 0, NewValidationError("INVALID_HOUR", fmt.Sprintf("invalid minutes in %q", s))
		}
	}
	// out-of-day hours are left to clampMinutes
	return hours*60 + minutes, nil
}

func clampMinutes(v int) int {
	if v < 0 {
		return 0
	}
	if v > lastMinute {
		return lastMinute
	}
	return v
}

func formatClock(v int) string {
	return fmt.Sprintf("%02d:%02d", v/60, v%60)
}
