// Package schedule defines deferred and recurring transfer definitions and
// the recurrence date math used when chains spawn their next occurrence.
package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/money"
)

var (
	// ErrScheduledTransferNotFound is returned when a definition cannot be found.
	ErrScheduledTransferNotFound = errors.New("scheduled transfer not found")

	// ErrNotCancellable is returned when cancelling a transfer that is no
	// longer pending.
	ErrNotCancellable = errors.New("scheduled transfer is not pending")

	// ErrScheduledInPast is returned when creating a definition whose first
	// run is already in the past.
	ErrScheduledInPast = errors.New("scheduled time must be in the future")
)

// Recurrence is the repetition kind of a scheduled transfer.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "NONE"
	RecurrenceDaily   Recurrence = "DAILY"
	RecurrenceWeekly  Recurrence = "WEEKLY"
	RecurrenceMonthly Recurrence = "MONTHLY"
)

// Valid reports whether r is a known recurrence kind.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Next computes the occurrence following t. Monthly recurrence targets the
// same day-of-month in the next month, clamped to that month's last valid
// day (Jan 31 -> Feb 28, or Feb 29 in a leap year). Returns t unchanged for
// RecurrenceNone.
func (r Recurrence) Next(t time.Time) time.Time {
	switch r {
	case RecurrenceDaily:
		return t.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return t.AddDate(0, 0, 7)
	case RecurrenceMonthly:
		year, month, day := t.Date()
		first := time.Date(year, month+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
		last := daysIn(first.Year(), first.Month())
		if day > last {
			day = last
		}
		return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	default:
		return t
	}
}

func daysIn(year int, month time.Month) int {
	// day 0 of the following month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Status is the lifecycle status of a scheduled transfer definition.
//
// PENDING -> EXECUTED on success (Processed set true in the same atomic
// unit); PENDING -> FAILED after retry exhaustion; PENDING -> CANCELLED by
// user request. FAILED never returns to PENDING: retries happen while still
// PENDING, tracked by RetryCount and LastRetryAt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuted  Status = "EXECUTED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// Transfer is a transfer request deferred to a future timestamp, optionally
// recurring. A recurring definition spawns new Transfer rows with advanced
// scheduled timestamps; ParentID points at the root of the chain (a scalar
// reference resolved by lookup, never an in-memory link), so chains are
// forward-only and acyclic by construction.
type Transfer struct {
	ID               uuid.UUID
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           money.Money
	Recurrence       Recurrence
	ScheduledAt      time.Time
	Status           Status
	Processed        bool
	RetryCount       int
	LastRetryAt      *time.Time
	ParentID         *uuid.UUID
	CreatedAt        time.Time
}

// RootID returns the chain root for spawning the next occurrence: the
// transfer's own parent when it has one, otherwise itself.
func (s *Transfer) RootID() uuid.UUID {
	if s.ParentID != nil {
		return *s.ParentID
	}
	return s.ID
}

// RetryEligible reports whether a previously failed attempt may run again
// at now, given the exponential backoff base: the watermark is
// LastRetryAt + base * 2^RetryCount.
func (s *Transfer) RetryEligible(now time.Time, base time.Duration) bool {
	if s.LastRetryAt == nil {
		return true
	}
	wait := base << uint(s.RetryCount)
	return !now.Before(s.LastRetryAt.Add(wait))
}
