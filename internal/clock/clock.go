// Package clock abstracts wall-clock time so time-dependent sweeps are
// testable without sleeping.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func System() Clock { return systemClock{} }
