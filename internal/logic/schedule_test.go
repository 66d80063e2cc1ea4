package logic

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 1, 15, hour, minute, 0, 0, time.UTC)
}

func TestIsComfortDefaultHours(t *testing.T) {
	s := NewSchedule(DefaultWindows)

	tests := []struct {
		hour int
		want bool
	}{
		{0, false},
		{5, false},
		{6, true},
		{7, true},
		{8, false},
		{12, false},
		{18, false},
		{19, true},
		{20, true},
		{21, false},
		{23, false},
	}
	for _, tt := range tests {
		if got := s.IsComfort(at(tt.hour, 0)); got != tt.want {
			t.Errorf("hour %d: got %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestIsComfortIgnoresMinutes(t *testing.T) {
	s := NewSchedule(DefaultWindows)

	if !s.IsComfort(at(7, 59)) {
		t.Error("07:59 should be comfort")
	}
	if s.IsComfort(at(5, 59)) {
		t.Error("05:59 should not be comfort")
	}
	if s.IsComfort(at(8, 0)) {
		t.Error("08:00 should not be comfort")
	}
}

func TestIsComfortUsesTimeLocation(t *testing.T) {
	s := NewSchedule(DefaultWindows)
	loc := time.FixedZone("UTC+2", 2*3600)

	// 05:00 UTC is 07:00 in UTC+2
	ts := time.Date(2026, 1, 15, 5, 0, 0, 0, time.UTC).In(loc)
	if !s.IsComfort(ts) {
		t.Error("expected comfort at 07:00 local")
	}
}

func TestIsComfortNoWindows(t *testing.T) {
	s := NewSchedule(nil)
	for h := 0; h < 24; h++ {
		if s.IsComfort(at(h, 0)) {
			t.Fatalf("hour %d: expected no comfort with empty schedule", h)
		}
	}
}

func TestNewScheduleCopiesWindows(t *testing.T) {
	windows := []Window{{Start: 6, End: 8}}
	s := NewSchedule(windows)
	windows[0].End = 24

	if s.IsComfort(at(9, 0)) {
		t.Error("schedule should not see later changes to the input slice")
	}
}

func TestParseWindows(t *testing.T) {
	got, err := ParseWindows(" 6-8, 19 - 21 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Window{{6, 8}, {19, 21}}
	if len(got) != len(want) {
		t.Fatalf("got %d windows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseWindowsFullDay(t *testing.T) {
	got, err := ParseWindows("0-24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := NewSchedule(got)
	if !s.IsComfort(at(0, 0)) || !s.IsComfort(at(23, 59)) {
		t.Error("0-24 should cover the whole day")
	}
}

func TestParseWindowsEmpty(t *testing.T) {
	got, err := ParseWindows("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no windows, got %v", got)
	}
}

func TestParseWindowsInvalid(t *testing.T) {
	for _, in := range []string{"6", "6-", "a-8", "6-b", "8-6", "7-7", "-1-5", "20-25", "6-8,", "6-8-10"} {
		if _, err := ParseWindows(in); err == nil {
			t.Errorf("ParseWindows(%q): expected error", in)
		}
	}
}

func TestWindowString(t *testing.T) {
	if s := (Window{Start: 19, End: 21}).String(); s != "19-21" {
		t.Errorf("got %q, want 19-21", s)
	}
}
