package imagery

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout        = "2006-01-02"
	DefaultWindowDays = 30
)

var ErrInvalidWindow = errors.New("invalid time window")

// TimeWindow is the closed acquisition interval used to filter scenes.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow is the trailing 30 days ending at now.
func DefaultWindow(now time.Time) TimeWindow {
	return TimeWindow{Start: now.AddDate(0, 0, -DefaultWindowDays), End: now}
}

// ParseWindow applies optional YYYY-MM-DD overrides on top of the default
// window. An end date covers the whole day.
func ParseWindow(start, end string, now time.Time) (TimeWindow, error) {
	w := DefaultWindow(now)
	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return TimeWindow{}, fmt.Errorf("end date %q: %w", end, ErrInvalidWindow)
		}
		w.End = t.Add(24*time.Hour - time.Second)
		if start == "" {
			w.Start = t.AddDate(0, 0, -DefaultWindowDays)
		}
	}
	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return TimeWindow{}, fmt.Errorf("start date %q: %w", start, ErrInvalidWindow)
		}
		w.Start = t
	}
	if w.Start.After(w.End) {
		return TimeWindow{}, fmt.Errorf("start %s after end %s: %w",
			w.Start.Format(DateLayout), w.End.Format(DateLayout), ErrInvalidWindow)
	}
	return w, nil
}

func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w TimeWindow) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}
