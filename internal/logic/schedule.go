package logic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a range of hours [Start, End) during which heating is permitted.
type Window struct {
	Start int
	End   int
}

func (w Window) String() string {
	return fmt.Sprintf("%d-%d", w.Start, w.End)
}

// Contains reports whether hour lies in [Start, End).
func (w Window) Contains(hour int) bool {
	return hour >= w.Start && hour < w.End
}

// DefaultWindows are the morning and evening comfort periods.
var DefaultWindows = []Window{{Start: 6, End: 8}, {Start: 19, End: 21}}

// Schedule maps wall-clock time to comfort periods.
type Schedule struct {
	Windows []Window
}

// NewSchedule creates a Schedule from the given windows.
func NewSchedule(windows []Window) Schedule {
	w := make([]Window, len(windows))
	copy(w, windows)
	return Schedule{Windows: w}
}

// IsComfort reports whether t falls in a comfort period.
// Only the hour of t (in its own location) is considered.
func (s Schedule) IsComfort(t time.Time) bool {
	hour := t.Hour()
	for _, w := range s.Windows {
		if w.Contains(hour) {
			return true
		}
	}
	return false
}

// ParseWindows parses "6-8,19-21" into windows.
// Each window must satisfy 0 <= start < end <= 24. Whitespace is ignored and
// an empty string yields no windows (heating never permitted).
func ParseWindows(s string) ([]Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var windows []Window
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		bounds := strings.Split(part, "-")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("window %q: want start-end", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("window %q: start: %w", part, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err != nil {
			return nil, fmt.Errorf("window %q: end: %w", part, err)
		}
		if start < 0 || end > 24 || start >= end {
			return nil, fmt.Errorf("window %q: need 0 <= start < end <= 24", part)
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows, nil
}
