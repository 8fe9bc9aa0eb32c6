package orderday

import (
	"errors"
	"time"
)

// OpenWindowDays bounds how far ahead a day may be opened for ordering.
const OpenWindowDays = 7

// GlobalBranch addresses the gate record that applies to every branch.
const GlobalBranch int64 = 0

// DayStatus is the gate flag for one (date, branch) pair. There is no
// history; open/close overwrite the same record.
type DayStatus struct {
	OrderDate time.Time
	BranchID  int64
	IsOpen    bool
}

var (
	// ErrOutOfWindow occurs when opening a date outside today..today+7.
	ErrOutOfWindow = errors.New("orderday: date outside open window")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("orderday: invalid input")
)

// Truncate drops the clock part so gate records key on the calendar date.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
