// Package schedule decides whether the processing window is open.
//
// Window bounds are fractional hours of the local day. A window whose start is
// not before its end wraps past midnight, so 22.5 to 6 covers 22:30 through
// 05:59 and equal bounds never close.
package schedule

import "time"

// Allowed reports whether now falls inside the window [start, end). Hours are
// compared at minute resolution.
func Allowed(now time.Time, start, end float64) bool {
	hour := float64(now.Hour()) + float64(now.Minute())/60
	if start < end {
		return start <= hour && hour < end
	}
	return hour >= start || hour < end
}

// Window is a recurring daily processing window.
type Window struct {
	Start float64
	End   float64
}

// Allowed reports whether now falls inside the window.
func (w Window) Allowed(now time.Time) bool {
	return Allowed(now, w.Start, w.End)
}

// AlwaysOpen reports whether the window never closes.
func (w Window) AlwaysOpen() bool {
	return w.Start == w.End
}

// NextOpen returns the next moment at or after now when the window is open.
func (w Window) NextOpen(now time.Time) time.Time {
	if w.Allowed(now) {
		return now
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	open := midnight.Add(hoursToDuration(w.Start))
	if !open.After(now) {
		open = time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location()).Add(hoursToDuration(w.Start))
	}
	return open
}

func hoursToDuration(hours float64) time.Duration {
	// Truncate to whole minutes to match the resolution used by Allowed.
	return time.Duration(hours*60) * time.Minute
}
