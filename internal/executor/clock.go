package executor

import "time"

// Clock schedules delayed callbacks. Tests substitute a virtual clock.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
