package academic

import (
	"fmt"
	"time"
)

// YearOf returns the academic year label for t, e.g. "2025/2026".
// August starts the new year.
func YearOf(t time.Time) string {
	y := t.Year()
	if t.Month() >= time.August {
		return fmt.Sprintf("%d/%d", y, y+1)
	}
	return fmt.Sprintf("%d/%d", y-1, y)
}

// Current resolves the label for clock().
func Current(clock func() time.Time) string {
	if clock == nil {
		clock = time.Now
	}
	return YearOf(clock())
}
