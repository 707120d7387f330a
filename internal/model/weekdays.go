package model

import "fmt"

// WeekdayMask is the onboarding active-days selection, Monday first. The wire
// encoding is a fixed 7-character string of '0'/'1' and must be preserved
// exactly.
type WeekdayMask [7]bool

// Weekday indices into a WeekdayMask.
const (
	Monday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DefaultWeekdayMask selects Monday through Friday.
func DefaultWeekdayMask() WeekdayMask {
	return WeekdayMask{true, true, true, true, true, false, false}
}

func (m WeekdayMask) String() string {
	b := make([]byte, 7)
	for i, on := range m {
		if on {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

// ParseWeekdayMask decodes the wire string back into a mask.
func ParseWeekdayMask(s string) (WeekdayMask, error) {
	var m WeekdayMask
	if len(s) != 7 {
		return m, fmt.Errorf("weekday mask must be 7 characters, got %d", len(s))
	}
	for i := 0; i < 7; i++ {
		switch s[i] {
		case '1':
			m[i] = true
		case '0':
		default:
			return m, fmt.Errorf("weekday mask has invalid character %q", s[i])
		}
	}
	return m, nil
}

// Set toggles a single day and returns the updated mask.
func (m WeekdayMask) Set(day int, on bool) WeekdayMask {
	if day >= 0 && day < 7 {
		m[day] = on
	}
	return m
}
