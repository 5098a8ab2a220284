package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Policy holds the venue's booking policy. Open and Close are offsets from
// midnight; both bounds are bookable.
type Policy struct {
	Open          time.Duration
	Close         time.Duration
	ClosedWeekday time.Weekday
	Location      *time.Location
	Now           func() time.Time
}

func DefaultPolicy() Policy {
	return Policy{
		Open:          10*time.Hour + 30*time.Minute,
		Close:         21*time.Hour + 30*time.Minute,
		ClosedWeekday: time.Tuesday,
		Location:      time.Local,
		Now:           time.Now,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Today returns the current calendar date in the venue's zone as YYYY-MM-DD.
func (p Policy) Today() string {
	return p.now().In(p.location()).Format(DateLayout)
}

func (p Policy) hoursMessage() string {
	return fmt.Sprintf(
		"Reservation must be within business hour %s to %s",
		FormatClock(p.Open), FormatClock(p.Close),
	)
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// ParseWeekday accepts English weekday names, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, nil
		}
	}

	return 0, fmt.Errorf("invalid weekday %q", s)
}
