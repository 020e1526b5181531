// Package system provides wall and fixed clocks.
package system

import "time"

// Clock implements crawler.Clock using time.Now in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Useful for reproducible
// extracted_at values.
type Fixed struct {
	T time.Time
}

// Now returns f.T in UTC.
func (f Fixed) Now() time.Time {
	return f.T.UTC()
}
