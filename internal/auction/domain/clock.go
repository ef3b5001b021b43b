package domain

import "time"

// UrgentThreshold marks the last minutes of an auction
const UrgentThreshold = 5 * time.Minute

// Clock is the wall-clock source used to decide auction liveness
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Countdown is the remaining time of an auction broken down for display.
// Every reader derives it through CountdownAt so they agree on whether the auction ended.
type Countdown struct {
	Days      int
	Hours     int
	Minutes   int
	Seconds   int
	Remaining time.Duration
	Ended     bool
	Urgent    bool
}

// CountdownAt computes the countdown to endTime as seen at now.
func CountdownAt(endTime, now time.Time) Countdown {
	remaining := endTime.Sub(now)
	if remaining <= 0 {
		return Countdown{Ended: true}
	}

	total := int64(remaining / time.Second)
	return Countdown{
		Days:      int(total / 86400),
		Hours:     int(total / 3600 % 24),
		Minutes:   int(total / 60 % 60),
		Seconds:   int(total % 60),
		Remaining: remaining,
		Urgent:    remaining < UrgentThreshold,
	}
}
