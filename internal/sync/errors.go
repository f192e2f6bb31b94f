package sync

import (
	"errors"
	"fmt"
	"time"
)

// ErrAccountNotFound is returned when a sync is requested for an unknown account
var ErrAccountNotFound = errors.New("account not found")

// ErrSyncInFlight is returned when the account already has a sync running
var ErrSyncInFlight = errors.New("a sync is already in flight for this account")

// ThrottleError is returned synchronously, before any work starts, when a
// sync is requested too soon after the previous snapshot
type ThrottleError struct {
	LastSnapshotDate time.Time
	NextAllowedDate  time.Time
	DaysRemaining    int
}

// Error implements the error interface
func (e *ThrottleError) Error() string {
	return fmt.Sprintf("sync throttled: last snapshot covered through %s, next sync allowed on %s (%d days remaining)",
		e.LastSnapshotDate.Format("2006-01-02"),
		e.NextAllowedDate.Format("2006-01-02"),
		e.DaysRemaining)
}

// IsThrottle reports whether the error is a throttle violation
func IsThrottle(err error) bool {
	var throttle *ThrottleError
	return errors.As(err, &throttle)
}
