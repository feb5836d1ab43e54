package services

import "time"

// Clock abstracts time so the scheduler and dashboard can be tested with
// simulated time advancement.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return realClock{} }
