// Package timeslot provides the HH:MM arithmetic the booking engine is built
// on. Times are minutes-from-midnight on a single day; AddMinutes wraps past
// midnight silently (no day-rollover indicator).
package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

var ErrInvalidFormat = errors.New("invalid time format, expected HH:MM")

// TimeToMinutes parses "HH:MM" into minutes from midnight [0,1439].
func TimeToMinutes(t string) (int, error) {
	parts := strings.Split(t, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, t)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, t)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, t)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidFormat, t)
	}
	return hours*60 + minutes, nil
}

// MinutesToTime formats minutes from midnight as "HH:MM". Total inverse of
// TimeToMinutes on [0,1439].
func MinutesToTime(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddMinutes adds delta minutes to a time, wrapping modulo 24h.
func AddMinutes(t string, delta int) (string, error) {
	base, err := TimeToMinutes(t)
	if err != nil {
		return "", err
	}
	return MinutesToTime(base + delta), nil
}

// RangesOverlap reports whether [s1,e1) and [s2,e2) intersect. Endpoint
// adjacency (e1 == s2) is NOT an overlap: back-to-back bookings at the same
// table are permitted.
func RangesOverlap(s1, e1, s2, e2 string) (bool, error) {
	start1, err := TimeToMinutes(s1)
	if err != nil {
		return false, err
	}
	end1, err := TimeToMinutes(e1)
	if err != nil {
		return false, err
	}
	start2, err := TimeToMinutes(s2)
	if err != nil {
		return false, err
	}
	end2, err := TimeToMinutes(e2)
	if err != nil {
		return false, err
	}
	return start1 < end2 && start2 < end1, nil
}
