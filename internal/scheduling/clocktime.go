package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day with second precision. Booking
// windows are half-open [start, end), so a window ending exactly where
// another begins does not collide with it.
type ClockTime struct {
	seconds int // seconds since midnight, may exceed 24h for window ends
}

// ParseClockTime accepts HH:MM or HH:MM:SS. Two-field input is normalized by
// assuming zero seconds.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return ClockTime{}, fmt.Errorf("invalid time %q: want HH:MM or HH:MM:SS", s)
	}

	fields := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 {
			return ClockTime{}, fmt.Errorf("invalid time %q: want HH:MM or HH:MM:SS", s)
		}
		fields[i] = n
	}

	h, m, sec := fields[0], fields[1], fields[2]
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return ClockTime{}, fmt.Errorf("invalid time %q: out of range", s)
	}

	return ClockTime{seconds: h*3600 + m*60 + sec}, nil
}

// ClockTimeOf extracts the time-of-day component of t.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime{seconds: t.Hour()*3600 + t.Minute()*60 + t.Second()}
}

func (t ClockTime) AddMinutes(m int) ClockTime {
	return ClockTime{seconds: t.seconds + m*60}
}

func (t ClockTime) Before(u ClockTime) bool { return t.seconds < u.seconds }

func (t ClockTime) String() string {
	s := t.seconds
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

func (t ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *ClockTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func overlaps(aStart, aEnd, bStart, bEnd ClockTime) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
