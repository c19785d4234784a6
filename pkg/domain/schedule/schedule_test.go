package schedule_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/payvault/payvault/pkg/domain/schedule"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestRecurrenceNext(t *testing.T) {
	tests := []struct {
		name string
		rec  schedule.Recurrence
		from time.Time
		want time.Time
	}{
		{"daily", schedule.RecurrenceDaily, date(2025, time.March, 14), date(2025, time.March, 15)},
		{"weekly", schedule.RecurrenceWeekly, date(2025, time.March, 14), date(2025, time.March, 21)},
		{"monthly same day", schedule.RecurrenceMonthly, date(2025, time.March, 14), date(2025, time.April, 14)},
		{"monthly clamps to feb", schedule.RecurrenceMonthly, date(2025, time.January, 31), date(2025, time.February, 28)},
		{"monthly clamps to leap feb", schedule.RecurrenceMonthly, date(2024, time.January, 31), date(2024, time.February, 29)},
		{"monthly 31 to 30", schedule.RecurrenceMonthly, date(2025, time.March, 31), date(2025, time.April, 30)},
		{"monthly year rollover", schedule.RecurrenceMonthly, date(2025, time.December, 15), date(2026, time.January, 15)},
		{"none is identity", schedule.RecurrenceNone, date(2025, time.March, 14), date(2025, time.March, 14)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Next(tt.from))
		})
	}
}

func TestRecurrenceNextPreservesTimeOfDay(t *testing.T) {
	from := time.Date(2025, time.January, 31, 23, 45, 12, 0, time.UTC)
	got := schedule.RecurrenceMonthly.Next(from)
	assert.Equal(t, 23, got.Hour())
	assert.Equal(t, 45, got.Minute())
	assert.Equal(t, 12, got.Second())
}

func TestRootID(t *testing.T) {
	root := uuid.New()
	child := &schedule.Transfer{ID: uuid.New(), ParentID: &root}
	assert.Equal(t, root, child.RootID())

	orphan := &schedule.Transfer{ID: uuid.New()}
	assert.Equal(t, orphan.ID, orphan.RootID())
}

func TestRetryEligible(t *testing.T) {
	now := time.Now()
	base := time.Minute

	s := &schedule.Transfer{RetryCount: 1}
	assert.True(t, s.RetryEligible(now, base), "nil LastRetryAt is always eligible")

	last := now.Add(-90 * time.Second)
	s.LastRetryAt = &last
	// watermark: last + base*2^1 = last + 2m; 90s elapsed < 2m
	assert.False(t, s.RetryEligible(now, base))

	last = now.Add(-3 * time.Minute)
	s.LastRetryAt = &last
	assert.True(t, s.RetryEligible(now, base))

	s.RetryCount = 3 // watermark becomes 8m
	assert.False(t, s.RetryEligible(now, base))
}
