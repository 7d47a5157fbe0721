// Package system provides the wall clock used to stamp progress events.
package system

import "time"

// Clock implements crawler.Clock using time.Now in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the time elapsed from start.
func (Clock) Since(start time.Time) time.Duration {
	return time.Since(start)
}
